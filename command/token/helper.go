package token

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// TokenHelper is an interface that contains basic operations that must be
// implemented by a token helper
type TokenHelper interface {
	// Path displays a method-specific path; for the internal helper this
	// is the location of the token stored on disk.
	Path() string
	Erase() error
	Get() (string, error)
	Store(string) error
}

const defaultTokenFile = ".billing-token"

var _ TokenHelper = (*InternalTokenHelper)(nil)

// InternalTokenHelper stores the token in a file under the user's home
// directory.
type InternalTokenHelper struct {
	tokenPath string
	homeDir   string
}

// NewInternalTokenHelper returns a helper storing the token in
// ~/.billing-token.
func NewInternalTokenHelper() (*InternalTokenHelper, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("error getting user's home directory: %w", err)
	}
	return &InternalTokenHelper{homeDir: homeDir}, nil
}

// NewTokenHelperAt returns a helper storing the token at path.
func NewTokenHelperAt(path string) *InternalTokenHelper {
	return &InternalTokenHelper{tokenPath: path}
}

func (i *InternalTokenHelper) populateTokenPath() {
	if i.tokenPath == "" {
		i.tokenPath = filepath.Join(i.homeDir, defaultTokenFile)
	}
}

func (i *InternalTokenHelper) Path() string {
	i.populateTokenPath()
	return i.tokenPath
}

// Get gets the value of the stored token, if any
func (i *InternalTokenHelper) Get() (string, error) {
	i.populateTokenPath()
	f, err := os.Open(i.tokenPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, f); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}

// Store stores the value of the token to the file. The file is replaced
// atomically and is only readable by the owner.
func (i *InternalTokenHelper) Store(input string) error {
	i.populateTokenPath()
	tmpFile := i.tokenPath + ".tmp"
	f, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	_, err = io.WriteString(f, input)
	if err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmpFile, i.tokenPath)
}

// Erase erases the value of the token
func (i *InternalTokenHelper) Erase() error {
	i.populateTokenPath()
	if err := os.Remove(i.tokenPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
