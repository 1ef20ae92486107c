// Package ingest turns picked files and recorded voice notes into message
// attachments carrying their bytes as data URLs.
package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/chat"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBytes caps a single attachment at 25 MiB.
const DefaultMaxBytes = 25 << 20

const octetStream = "application/octet-stream"

var (
	ErrEmptyName = errors.New("attachment has no name")
	ErrTooLarge  = errors.New("attachment exceeds size limit")
)

// File is a picked file before it becomes an attachment. MIME is the
// declared type and may be empty.
type File struct {
	Name string
	MIME string
	Data []byte
}

// ReadFile loads a file from disk for attaching.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read attachment: %w", err)
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// DetectMIME picks the media type of a file: the declared type, else the
// one registered for the extension, else content sniffing. Parameters such
// as charset are dropped.
func DetectMIME(name, declared string, data []byte) string {
	if t := baseType(declared); t != "" {
		return t
	}
	if t := baseType(mime.TypeByExtension(filepath.Ext(name))); t != "" {
		return t
	}
	if len(data) > 0 {
		if t := baseType(http.DetectContentType(data)); t != "" {
			return t
		}
	}
	return octetStream
}

func baseType(t string) string {
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mt
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Ingester converts files into attachments.
type Ingester struct {
	maxBytes int64
	newID    func() string
}

// New returns an ingester rejecting files over maxBytes. A non-positive
// limit uses DefaultMaxBytes.
func New(maxBytes int64) *Ingester {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Ingester{maxBytes: maxBytes, newID: uuid.NewString}
}

// MaxBytes returns the per-file size limit.
func (in *Ingester) MaxBytes() int64 {
	return in.maxBytes
}

// Prepare converts one file. No attachment is produced on error.
func (in *Ingester) Prepare(f File) (chat.Attachment, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return chat.Attachment{}, ErrEmptyName
	}
	size := int64(len(f.Data))
	if size > in.maxBytes {
		return chat.Attachment{}, fmt.Errorf("%w: %s is %s, limit %s",
			ErrTooLarge, name, chat.FormatSize(size), chat.FormatSize(in.maxBytes))
	}

	mt := DetectMIME(name, f.MIME, f.Data)
	return chat.Attachment{
		ID:      in.newID(),
		Name:    name,
		Size:    size,
		MIME:    mt,
		URL:     DataURL(mt, f.Data),
		IsImage: strings.HasPrefix(mt, "image/"),
		IsAudio: strings.HasPrefix(mt, "audio/"),
	}, nil
}

// PrepareAll converts files concurrently, keeping their order. Either every
// file becomes an attachment or an error is returned.
func (in *Ingester) PrepareAll(ctx context.Context, files []File) ([]chat.Attachment, error) {
	out := make([]chat.Attachment, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			att, err := in.Prepare(f)
			if err != nil {
				return err
			}
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("prepare attachments: %w", err)
	}
	return out, nil
}
