package domain

import "context"

// Document is a rendered artifact representing an offer.
type Document struct {
	Key         string
	ContentType string
	Body        []byte
}

// DocumentRenderer renders an offer into a document artifact.
type DocumentRenderer interface {
	Render(offer *Offer, senderName string) (*Document, error)
}

// DocumentStore persists documents and returns a publicly resolvable URL.
type DocumentStore interface {
	Put(ctx context.Context, doc *Document) (url string, err error)
}
