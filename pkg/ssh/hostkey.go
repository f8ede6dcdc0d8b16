// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy decides what happens with a host key missing from known_hosts.
// A key that contradicts a known_hosts entry is rejected under every policy.
type HostKeyPolicy string

const (
	// PolicyStrict rejects unknown hosts.
	PolicyStrict HostKeyPolicy = "strict"
	// PolicyAcceptNew records unknown hosts without asking.
	PolicyAcceptNew HostKeyPolicy = "accept-new"
	// PolicyAsk asks the operator before recording an unknown host.
	PolicyAsk HostKeyPolicy = "ask"
)

// ErrHostKeyRejected is returned when an unknown host key is not accepted.
var ErrHostKeyRejected = errors.New("host key verification failed")

// Confirm asks the operator a yes/no question.
type Confirm func(question string) (bool, error)

// PromptConfirm reads the answer from in in the manner of OpenSSH: "yes", "y"
// or the key fingerprint accept.
func PromptConfirm(in io.Reader, out io.Writer) Confirm {
	reader := bufio.NewReader(in)
	return func(question string) (bool, error) {
		fmt.Fprint(out, question+" (yes/no/[fingerprint])? ")
		response, err := reader.ReadString('\n')
		if err != nil && response == "" {
			return false, fmt.Errorf("failed to read user input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response == "yes" || response == "y" {
			return true, nil
		}
		return strings.HasPrefix(response, "sha256:") && strings.Contains(strings.ToLower(question), response), nil
	}
}

// DefaultKnownHostsPath returns default user knows hosts file.
func DefaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh", "known_hosts"), nil
}

// HostKeyCallback checks host keys against knownHostsPath, creating the file
// when missing. An empty path means the user's default known_hosts and an
// empty policy means PolicyAsk. A nil confirm prompts on the terminal.
func HostKeyCallback(policy HostKeyPolicy, knownHostsPath string, confirm Confirm, log logrus.FieldLogger) (ssh.HostKeyCallback, error) {
	if policy == "" {
		policy = PolicyAsk
	}
	switch policy {
	case PolicyStrict, PolicyAcceptNew, PolicyAsk:
	default:
		return nil, fmt.Errorf("unknown host key policy %q", policy)
	}
	if knownHostsPath == "" {
		var err error
		if knownHostsPath, err = DefaultKnownHostsPath(); err != nil {
			return nil, err
		}
	}
	if err := ensureKnownHostsFile(knownHostsPath); err != nil {
		return nil, fmt.Errorf("failed to ensure known_hosts file exists: %w", err)
	}
	if confirm == nil {
		confirm = PromptConfirm(os.Stdin, os.Stderr)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		// Reloaded on every call so keys accepted earlier in the run are seen.
		known, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", knownHostsPath, err)
		}

		lookup := hostname
		if tcpAddr, ok := remote.(*net.TCPAddr); ok {
			if _, _, err := net.SplitHostPort(hostname); err != nil {
				lookup = net.JoinHostPort(hostname, strconv.Itoa(tcpAddr.Port))
			}
		}

		err = known(lookup, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		fingerprint := ssh.FingerprintSHA256(key)
		if len(keyErr.Want) > 0 {
			return fmt.Errorf("%w: %s key for %s is %s and does not match known_hosts, possible man-in-the-middle attack",
				ErrHostKeyRejected, key.Type(), hostname, fingerprint)
		}

		switch policy {
		case PolicyStrict:
			return fmt.Errorf("%w: %s is not in %s", ErrHostKeyRejected, hostname, knownHostsPath)
		case PolicyAsk:
			question := fmt.Sprintf("The authenticity of host '%s (%s)' can't be established.\n%s key fingerprint is %s.\nAre you sure you want to continue connecting",
				hostname, remote, key.Type(), fingerprint)
			ok, err := confirm(question)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: cancelled by user", ErrHostKeyRejected)
			}
		}

		if err := addHostKey(lookup, remote, key, knownHostsPath); err != nil {
			return fmt.Errorf("failed to add host key to known_hosts: %w", err)
		}
		log.Warnf("Permanently added '%s' (%s %s) to the list of known hosts", hostname, key.Type(), fingerprint)
		return nil
	}, nil
}

// addHostKey appends the key for the hostname and the remote IP.
func addHostKey(hostname string, remote net.Addr, key ssh.PublicKey, knownHostsPath string) error {
	file, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	addresses := []string{hostname}
	if tcpAddr, ok := remote.(*net.TCPAddr); ok {
		ip := net.JoinHostPort(tcpAddr.IP.String(), strconv.Itoa(tcpAddr.Port))
		if knownhosts.Normalize(ip) != knownhosts.Normalize(hostname) {
			addresses = append(addresses, ip)
		}
	}

	_, err = file.WriteString(knownhosts.Line(addresses, key) + "\n")
	return err
}

func ensureKnownHostsFile(knownHostsPath string) error {
	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0o700); err != nil {
		return err
	}
	file, err := os.OpenFile(knownHostsPath, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return err
	}
	return file.Close()
}
