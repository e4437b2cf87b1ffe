package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// TerminalAuthenticator implements auth.UserAuthenticator by prompting on a terminal.
// In and Out default to stdin and stdout.
type TerminalAuthenticator struct {
	PhoneNumber string // prompted when empty
	In          io.Reader
	Out         io.Writer

	reader *bufio.Reader
}

func (a *TerminalAuthenticator) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *TerminalAuthenticator) readLine() (string, error) {
	if a.reader == nil {
		in := a.In
		if in == nil {
			in = os.Stdin
		}
		a.reader = bufio.NewReader(in)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *TerminalAuthenticator) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("signing up is not supported, register the account in an official client first")
}

func (a *TerminalAuthenticator) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *TerminalAuthenticator) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	fmt.Fprintln(a.out())
	fmt.Fprintln(a.out(), "A verification code has been sent to your phone via Telegram.")
	fmt.Fprint(a.out(), "Enter code: ")
	return a.readLine()
}

func (a *TerminalAuthenticator) Phone(_ context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}
	fmt.Fprint(a.out(), "Enter phone in international format (e.g. +1234567890): ")
	return a.readLine()
}

func (a *TerminalAuthenticator) Password(_ context.Context) (string, error) {
	fmt.Fprint(a.out(), "Enter 2FA password: ")
	if a.In != nil {
		return a.readLine()
	}
	bytePwd, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(a.out())
	return strings.TrimSpace(string(bytePwd)), nil
}

var _ auth.UserAuthenticator = (*TerminalAuthenticator)(nil)
