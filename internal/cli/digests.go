package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"sigstage/internal/bundle"
	"sigstage/internal/stage"
)

// ListDigests writes "<line>\t<variant>\t<digest>" for every digest every
// record of the attestation file at path refers to. It uses the same decoding
// as a staging run and stops at the first record that does not decode.
func ListDigests(ctx context.Context, path string, w io.Writer) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read attestations")
	}
	records := 0
	err = stage.ForEachRecord(blob, func(line int, record []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := bundle.Parse(record)
		if err != nil {
			return &stage.RecordError{Line: line, Err: err}
		}
		digests, err := b.Digests()
		if err != nil {
			return &stage.RecordError{Line: line, Err: err}
		}
		for _, d := range bundle.Sorted(digests) {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", line, b.Content.Variant(), d); err != nil {
				return err
			}
		}
		records++
		return nil
	})
	if err != nil {
		return err
	}
	log.G(ctx).WithField("records", records).Debug("listed attestation digests")
	return nil
}
