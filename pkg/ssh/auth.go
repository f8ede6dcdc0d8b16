// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// Auth represents ssh auth methods.
type Auth []ssh.AuthMethod

// configureAuth offers the private key first and the password second when
// both are configured.
func configureAuth(password, privateKeyFile, passphrase string) (Auth, error) {
	var auth Auth
	if privateKeyFile != "" {
		keyAuth, err := PrivateKey(privateKeyFile, passphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, keyAuth...)
	}
	if password != "" {
		auth = append(auth, Password(password)...)
	}
	if len(auth) == 0 {
		return nil, errors.New("neither a private key nor a password is configured")
	}
	return auth, nil
}

// Password returns password auth method. Windows OpenSSH also accepts the
// password through keyboard-interactive.
func Password(pass string) Auth {
	return Auth{
		ssh.Password(pass),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = pass
			}
			return answers, nil
		}),
	}
}

// PrivateKey returns auth method from private key with or without passphrase.
func PrivateKey(prvFile string, passphrase string) (Auth, error) {
	pem, err := os.ReadFile(prvFile)
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse private key %s: %w", prvFile, err)
	}
	return Auth{ssh.PublicKeys(signer)}, nil
}
