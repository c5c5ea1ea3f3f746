package request

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// PartKind distinguishes file parts from text fields.
type PartKind int

const (
	PartText PartKind = iota
	PartFile
)

const defaultFileContentType = "application/octet-stream"

// Part is one ordered entry of a multipart body.
type Part struct {
	Kind        PartKind
	Name        string
	Filename    string
	ContentType string
	Value       string
	Reader      io.Reader
}

// Multipart is an ordered multipart/form-data container with a fixed boundary.
type Multipart struct {
	boundary string
	parts    []Part
}

func newMultipart() *Multipart {
	return &Multipart{boundary: "httpcap" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// Boundary returns the boundary token chosen when the container was created.
func (mp *Multipart) Boundary() string { return mp.boundary }

// ContentType returns the multipart/form-data content type with boundary.
func (mp *Multipart) ContentType() string {
	return "multipart/form-data; boundary=" + mp.boundary
}

// Parts returns a copy of the parts in insertion order.
func (mp *Multipart) Parts() []Part {
	out := make([]Part, len(mp.parts))
	copy(out, mp.parts)
	return out
}

func (mp *Multipart) add(p Part) { mp.parts = append(mp.parts, p) }

// Encode writes the parts to w. File readers are consumed, so Encode is
// meant to run once, from the transport.
func (mp *Multipart) Encode(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(mp.boundary); err != nil {
		return fmt.Errorf("set multipart boundary: %w", err)
	}
	for _, p := range mp.parts {
		if err := writePart(mw, p); err != nil {
			return fmt.Errorf("write part %q: %w", p.Name, err)
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, p Part) error {
	if p.Kind == PartText {
		return mw.WriteField(p.Name, p.Value)
	}

	ct := p.ContentType
	if ct == "" {
		ct = defaultFileContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.Name), quoteEscaper.Replace(p.Filename)))
	h.Set(HeaderContentType, ct)

	dst, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, p.Reader)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
