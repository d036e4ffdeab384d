package audit

import "context"

// Meta is the request metadata copied into every audit record.
type Meta struct {
	ActorID   string
	IP        string
	UserAgent string
}

type metaKey struct{}

func WithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// WithActor sets the actor while keeping the rest of the metadata.
func WithActor(ctx context.Context, actorID string) context.Context {
	meta := MetaFrom(ctx)
	meta.ActorID = actorID
	return WithMeta(ctx, meta)
}

func MetaFrom(ctx context.Context) Meta {
	meta, _ := ctx.Value(metaKey{}).(Meta)
	return meta
}
