package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// TermPrompt reads passwords from the terminal without echo. When stdin is
// not a terminal it reads one line per prompt instead.
type TermPrompt struct {
	in     *os.File
	reader *bufio.Reader
	w      io.Writer
}

func NewTermPrompt(in *os.File, w io.Writer) *TermPrompt {
	return &TermPrompt{in: in, reader: bufio.NewReader(in), w: w}
}

func (p *TermPrompt) read(prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(p.w, prompt); err != nil {
		return nil, err
	}
	fd := int(p.in.Fd())
	if isTerminal(fd) {
		pw, err := readPassword(fd)
		fmt.Fprintln(p.w)
		return pw, err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// Password implements sensors.PasswordPrompt.
func (p *TermPrompt) Password(ctx context.Context, prompt string, confirm bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := p.read(prompt)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("%w: empty password", common.ErrValidation)
	}
	if !confirm {
		return pw, nil
	}

	again, err := p.read("Repeat password: ")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	return pw, nil
}
