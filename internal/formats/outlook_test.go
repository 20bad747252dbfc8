package formats

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/shelfd/internal/chunk"
	"github.com/fyrsmithlabs/shelfd/internal/sourcefile"
)

const plainEML = "From: Sender <from@domain.com>\r\n" +
	"To: to@domain.com\r\n" +
	"Subject: creating an outlook message file\r\n" +
	"Date: Mon, 02 Jan 2023 10:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello, this is the mail body.\r\n"

const multipartEML = "From: from@domain.com\r\n" +
	"Subject: alternative mail\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"sep\"\r\n" +
	"\r\n" +
	"--sep\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain version\r\n" +
	"--sep\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>html version</p>\r\n" +
	"--sep--\r\n"

func writeEML(t *testing.T, content string) sourcefile.SourceFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mail.eml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return sourcefile.SourceFile{ID: "mail-1", Path: path, FileName: "mail.eml"}
}

func TestParseEMLPlain(t *testing.T) {
	msg, err := parseEML(writeEML(t, plainEML).Path)
	require.NoError(t, err)

	assert.Equal(t, "from@domain.com", msg.Sender)
	assert.Equal(t, "creating an outlook message file", msg.Subject)
	assert.Equal(t, time.Date(2023, 1, 2, 10, 30, 0, 0, time.UTC), msg.Date)
	assert.Contains(t, msg.TextBody, "Hello, this is the mail body.")
	assert.Empty(t, msg.HTMLBody)
}

func TestParseEMLMultipart(t *testing.T) {
	msg, err := parseEML(writeEML(t, multipartEML).Path)
	require.NoError(t, err)

	assert.Contains(t, msg.TextBody, "plain version")
	assert.Contains(t, msg.HTMLBody, "<p>html version</p>")
	// HTML wins for chunking when both alternatives exist.
	assert.Contains(t, msg.body(), "html version")
}

func TestOutlookProviderProcessEML(t *testing.T) {
	p := NewOutlookProvider()
	file := writeEML(t, plainEML)

	chunks, err := p.ProcessFile(context.Background(), file, SplitParams{})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	c := chunks[0]
	assert.Equal(t, "outlook", c.Format())
	assert.Equal(t, "mail.eml", c.Metadata[chunk.KeySource])
	assert.Equal(t, "from@domain.com", c.Metadata[keySender])
	assert.Equal(t, "creating an outlook message file", c.Metadata[keySubject])
	assert.Equal(t, "2023-01-02T10:30:00Z", c.Metadata[keyDate])
	assert.Contains(t, c.Content, "Hello, this is the mail body.")
}

func TestOutlookProviderRejectsGarbageMSG(t *testing.T) {
	p := NewOutlookProvider()
	path := filepath.Join(t.TempDir(), "broken.msg")
	require.NoError(t, os.WriteFile(path, []byte("not an ole file"), 0o600))

	_, err := p.ProcessFile(context.Background(), sourcefile.SourceFile{Path: path, FileName: "broken.msg"}, SplitParams{})
	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "outlook", pe.Provider)
}

func TestDecodeMAPIString(t *testing.T) {
	// "hi" in UTF-16LE.
	assert.Equal(t, "hi", decodeMAPIString([]byte{0x68, 0x00, 0x69, 0x00}, typeUnicode))
	assert.Equal(t, "hi", decodeMAPIString([]byte("hi\x00"), type8Bit))
	assert.Equal(t, "", decodeMAPIString([]byte{0x01}, 0x0003))
}

func TestExtractSubmitTime(t *testing.T) {
	// One 16 byte record after the 32 byte header: tag 0x00390040,
	// flags, then the FILETIME for the unix epoch.
	buf := make([]byte, 48)
	buf[32] = 0x40
	buf[33] = 0x00
	buf[34] = 0x39
	buf[35] = 0x00
	// 116444736000000000 little-endian
	copy(buf[40:], []byte{0x00, 0x80, 0x3E, 0xD5, 0xDE, 0xB1, 0x9D, 0x01})

	ts := extractSubmitTime(buf)
	assert.Equal(t, time.Unix(0, 0).UTC(), ts)

	assert.True(t, extractSubmitTime(nil).IsZero())
}
