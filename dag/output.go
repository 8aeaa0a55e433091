package dag

import (
	"context"
	"io"
)

type outputWriterKey struct{}

// OutputWriter returns the writer a step should use for captured textual
// output (spec §4.3.4). Steps that don't care about output capture can
// ignore it; the zero value is io.Discard so writing is always safe.
func OutputWriter(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputWriterKey{}).(io.Writer); ok {
		return w
	}
	return io.Discard
}

func withOutputWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputWriterKey{}, w)
}
