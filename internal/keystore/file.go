package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dmitrijs2005/workwatch/internal/common"
	"github.com/dmitrijs2005/workwatch/internal/cryptox"
	"github.com/dmitrijs2005/workwatch/internal/filex"
)

const (
	keyFileMagic     = "WWKEY1"
	deviceSecretFile = ".device_secret"
	deviceSecretSize = 32
	wrapInfoPrefix   = "workwatch/key/"
)

// FileCustodian keeps wrapped keys in dir as <alias>.key.
//
// File layout: "WWKEY1" ‖ nonce ‖ AES-GCM(wrapKey, key). The wrapping key is
// HKDF(deviceSecret, "workwatch/key/"+alias), so a key file copied under a
// different alias does not unwrap.
type FileCustodian struct {
	dir    string
	secret []byte
	mu     sync.Mutex
}

// NewFileCustodian opens (or creates) a key directory. When secret is empty
// a random device secret is generated once and stored in dir.
func NewFileCustodian(dir string, secret []byte) (*FileCustodian, error) {
	abs, err := filex.EnsureDir(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("key dir: %w", err)
	}
	if err := checkPerm(abs, true); err != nil {
		return nil, err
	}

	if len(secret) == 0 {
		secret, err = loadOrCreateDeviceSecret(abs)
		if err != nil {
			return nil, err
		}
	}

	return &FileCustodian{dir: abs, secret: bytes.Clone(secret)}, nil
}

func loadOrCreateDeviceSecret(dir string) ([]byte, error) {
	path := filepath.Join(dir, deviceSecretFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if err := checkPerm(path, false); err != nil {
			return nil, err
		}
		if len(data) != deviceSecretSize {
			return nil, fmt.Errorf("%w: device secret has %d bytes", ErrKeyCorrupted, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	secret := common.GenerateRandByteArray(deviceSecretSize)
	err = filex.WriteFileExclusive(path, secret, 0o600)
	if errors.Is(err, os.ErrExist) {
		// another process created it first
		return loadOrCreateDeviceSecret(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("store device secret: %w", err)
	}
	return secret, nil
}

func checkPerm(path string, isDir bool) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if isDir != fi.IsDir() {
		return fmt.Errorf("%s: unexpected file type", path)
	}
	if fi.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %o", ErrInsecurePermissions, path, fi.Mode().Perm())
	}
	return nil
}

func (c *FileCustodian) path(alias string) string {
	return filepath.Join(c.dir, alias+".key")
}

func (c *FileCustodian) wrapKey(alias string) ([]byte, error) {
	return cryptox.DeriveSubkey(c.secret, wrapInfoPrefix+alias)
}

// GetOrCreateKey returns the key stored under alias, creating it on first
// use. An existing key file is never replaced.
func (c *FileCustodian) GetOrCreateKey(alias string) ([]byte, error) {
	if err := validateAlias(alias); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wk, err := c.wrapKey(alias)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(wk)

	data, err := os.ReadFile(c.path(alias))
	switch {
	case err == nil:
		return c.unwrap(alias, data, wk)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read key %s: %w", alias, err)
	}

	key := common.GenerateRandByteArray(cryptox.KeySize)
	blob, err := cryptox.Seal(key, wk)
	if err != nil {
		return nil, err
	}

	out := append([]byte(keyFileMagic), blob...)
	err = filex.WriteFileExclusive(c.path(alias), out, 0o600)
	if errors.Is(err, os.ErrExist) {
		// another process created the key first; its key wins
		common.WipeByteArray(key)
		data, err := os.ReadFile(c.path(alias))
		if err != nil {
			return nil, fmt.Errorf("read key %s: %w", alias, err)
		}
		return c.unwrap(alias, data, wk)
	}
	if err != nil {
		return nil, fmt.Errorf("store key %s: %w", alias, err)
	}
	return key, nil
}

func (c *FileCustodian) unwrap(alias string, data, wk []byte) ([]byte, error) {
	if err := checkPerm(c.path(alias), false); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte(keyFileMagic)) {
		return nil, fmt.Errorf("%w: %s: bad header", ErrKeyCorrupted, alias)
	}
	key, err := cryptox.Open(data[len(keyFileMagic):], wk)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyCorrupted, alias, err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: %s: bad key length", ErrKeyCorrupted, alias)
	}
	return key, nil
}

func (c *FileCustodian) Exists(alias string) (bool, error) {
	if err := validateAlias(alias); err != nil {
		return false, err
	}
	return filex.Exists(c.path(alias))
}

func (c *FileCustodian) Delete(alias string) error {
	if err := validateAlias(alias); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path(alias)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete key %s: %w", alias, err)
	}
	return nil
}
