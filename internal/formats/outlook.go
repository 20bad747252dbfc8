package formats

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

// Chunk metadata keys specific to mail messages.
const (
	keySender  = "sender"
	keySubject = "subject"
	keyDate    = "date"
)

// mailMessage is the parsed form of a .msg or .eml file.
type mailMessage struct {
	Sender   string
	Subject  string
	Date     time.Time
	HTMLBody string
	TextBody string
}

// body returns the preferred body for chunking: HTML when present,
// otherwise plain text.
func (m *mailMessage) body() string {
	if m.HTMLBody != "" {
		return m.HTMLBody
	}
	return m.TextBody
}

// OutlookProvider handles Outlook .msg files and RFC 822 .eml files.
// Mail bodies are short, so chunks are smaller and do not overlap.
type OutlookProvider struct {
	matcher
	splitConfig
}

// NewOutlookProvider returns the mail message format provider.
func NewOutlookProvider() *OutlookProvider {
	return &OutlookProvider{
		matcher: matcher{
			extensions: []string{"msg", "eml"},
			mimeTypes:  []string{"application/vnd.ms-outlook", "message/rfc822"},
		},
		splitConfig: splitConfig{chunkSize: 500, chunkOverlap: 0},
	}
}

func (p *OutlookProvider) Name() string { return "outlook" }

func (p *OutlookProvider) Multiprocessable() bool { return true }

func (p *OutlookProvider) ProcessFile(_ context.Context, file sourcefile.SourceFile, params SplitParams) ([]chunk.Chunk, error) {
	msg, err := parseMailFile(file)
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}

	chunks, err := p.split(params, p.Name(), msg.body())
	if err != nil {
		return nil, &ProcessingError{Provider: p.Name(), Err: err}
	}

	extra := map[string]any{
		chunk.KeySource: file.FileName,
		keySender:       msg.Sender,
		keySubject:      msg.Subject,
	}
	if !msg.Date.IsZero() {
		extra[keyDate] = msg.Date.Format(time.RFC3339)
	}
	for i, c := range chunks {
		chunks[i] = c.WithMetadata(extra)
	}
	return chunks, nil
}

func (p *OutlookProvider) ConvertToPDF(ctx context.Context, file sourcefile.SourceFile) (sourcefile.SourceFile, error) {
	msg, err := parseMailFile(file)
	if err != nil {
		return sourcefile.SourceFile{}, err
	}

	if msg.HTMLBody != "" {
		return htmlToPDFFile(ctx, []byte(msg.HTMLBody), file.ID, file.FileName)
	}

	text := msg.TextBody
	if text == "" {
		text = "[empty body]"
	}
	markdown := fmt.Sprintf("# From: %s\nSubject: %s\n\n%s", msg.Sender, msg.Subject, text)
	htmlDoc, err := markdownToHTML([]byte(markdown))
	if err != nil {
		return sourcefile.SourceFile{}, err
	}
	return htmlToPDFFile(ctx, htmlDoc, file.ID, file.FileName)
}

func parseMailFile(file sourcefile.SourceFile) (*mailMessage, error) {
	if strings.EqualFold(file.Ext(), "eml") || strings.EqualFold(file.MimeType, "message/rfc822") {
		return parseEML(file.Path)
	}
	return parseMSG(file.Path)
}

// MAPI property ids and types used below. Strings are stored one
// property per stream, named __substg1.0_<id><type>.
const (
	propSubject     = 0x0037
	propSenderName  = 0x0C1A
	propSenderSMTP  = 0x5D01
	propBody        = 0x1000
	propHTMLBody    = 0x1013
	typeUnicode     = 0x001F
	type8Bit        = 0x001E
	typeBinary      = 0x0102
	tagSubmitTime   = 0x00390040
	propStreamName  = "__properties_version1.0"
	substgPrefix    = "__substg1.0_"
	filetimeToUnix  = 116444736000000000
	propRecordBytes = 16
)

// parseMSG reads an Outlook message from its OLE compound file.
func parseMSG(path string) (*mailMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("not a valid msg file: %w", err)
	}

	msg := &mailMessage{}
	var senderName string

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		// Attachment and recipient storages repeat the property streams;
		// only top level entries describe the message itself.
		if len(entry.Path) > 0 {
			continue
		}

		if entry.Name == propStreamName {
			buf, err := io.ReadAll(entry)
			if err != nil {
				continue
			}
			msg.Date = extractSubmitTime(buf)
			continue
		}

		if !strings.HasPrefix(entry.Name, substgPrefix) {
			continue
		}
		var propID, propType uint32
		if _, err := fmt.Sscanf(entry.Name[len(substgPrefix):], "%04X%04X", &propID, &propType); err != nil {
			continue
		}

		buf, err := io.ReadAll(entry)
		if err != nil {
			continue
		}
		value := decodeMAPIString(buf, propType)

		switch propID {
		case propSubject:
			msg.Subject = value
		case propSenderSMTP:
			msg.Sender = value
		case propSenderName:
			senderName = value
		case propBody:
			msg.TextBody = value
		case propHTMLBody:
			msg.HTMLBody = value
		}
	}

	if msg.Sender == "" {
		msg.Sender = senderName
	}
	return msg, nil
}

func decodeMAPIString(buf []byte, propType uint32) string {
	switch propType {
	case typeUnicode:
		u16 := make([]uint16, len(buf)/2)
		for i := range u16 {
			u16[i] = binary.LittleEndian.Uint16(buf[i*2:])
		}
		return strings.TrimRight(string(utf16.Decode(u16)), "\x00")
	case type8Bit, typeBinary:
		return strings.TrimRight(string(buf), "\x00")
	default:
		return ""
	}
}

// extractSubmitTime scans the fixed property stream for the client
// submit time. Records are 16 bytes: tag, flags, value.
func extractSubmitTime(buf []byte) time.Time {
	// The top level property stream starts with a 32 byte header.
	for off := 32; off+propRecordBytes <= len(buf); off += propRecordBytes {
		tag := binary.LittleEndian.Uint32(buf[off:])
		if tag != tagSubmitTime {
			continue
		}
		ft := binary.LittleEndian.Uint64(buf[off+8:])
		if ft < filetimeToUnix {
			return time.Time{}
		}
		return time.Unix(0, int64(ft-filetimeToUnix)*100).UTC()
	}
	return time.Time{}
}

// parseEML reads an RFC 822 message, walking multipart bodies for the
// HTML and plain text alternatives.
func parseEML(path string) (*mailMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("not a valid eml file: %w", err)
	}

	msg := &mailMessage{
		Sender:  m.Header.Get("From"),
		Subject: m.Header.Get("Subject"),
	}
	if addr, err := mail.ParseAddress(msg.Sender); err == nil {
		msg.Sender = addr.Address
	}
	if date, err := m.Header.Date(); err == nil {
		msg.Date = date.UTC()
	}

	if err := readMailBody(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func readMailBody(contentType, encoding string, r io.Reader, msg *mailMessage) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read mail part: %w", err)
			}
			if err := readMailBody(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part, msg,
			); err != nil {
				return err
			}
		}
	}

	body, err := io.ReadAll(decodeTransferEncoding(r, encoding))
	if err != nil {
		return fmt.Errorf("failed to read mail body: %w", err)
	}

	switch mediaType {
	case "text/html":
		if msg.HTMLBody == "" {
			msg.HTMLBody = string(body)
		}
	case "text/plain":
		if msg.TextBody == "" {
			msg.TextBody = string(body)
		}
	}
	return nil
}

func decodeTransferEncoding(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
