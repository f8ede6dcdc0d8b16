// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// default constants
const (
	DefaultTimeout     = 20 * time.Second
	DefaultPort        = 22
	DefaultDialRetries = 3
)

// Client represents ssh client.
type Client struct {
	*ssh.Client
	log logrus.FieldLogger
}

// Config describes the remote Windows host running the 1C server and
// holding the backup share. An empty Host means everything is local.
type Config struct {
	Host          string        `koanf:"host" json:"host"`
	Port          int           `koanf:"port" json:"port" validate:"min=0,max=65535"`
	User          string        `koanf:"user" json:"user" validate:"required_with=Host"`
	Password      string        `koanf:"password" json:"-"`
	PrivateKey    string        `koanf:"private_key" json:"private_key"`
	Passphrase    string        `koanf:"passphrase" json:"-"`
	KnownHosts    string        `koanf:"known_hosts" json:"known_hosts"`
	HostKeyPolicy HostKeyPolicy `koanf:"host_key_policy" json:"host_key_policy" validate:"omitempty,oneof=strict accept-new ask"`
	Timeout       time.Duration `koanf:"timeout" json:"timeout"`
	DialRetries   int           `koanf:"dial_retries" json:"dial_retries" validate:"min=0"`

	hostKeyCallback ssh.HostKeyCallback
}

func (c *Config) Enabled() bool {
	return c.Host != ""
}

func (c *Config) SetHostKeyCallback(hostKeyCallback ssh.HostKeyCallback) {
	c.hostKeyCallback = hostKeyCallback
}

func (c *Config) address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Dial connects to the host, retrying with exponential backoff while the
// host is unreachable. Authentication and host key failures are not retried.
func Dial(ctx context.Context, config *Config, log logrus.FieldLogger) (*Client, error) {
	auth, err := configureAuth(config.Password, config.PrivateKey, config.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to configure auth: %w", err)
	}

	hostKeyCallback := config.hostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback, err = HostKeyCallback(config.HostKeyPolicy, config.KnownHosts, nil, log)
		if err != nil {
			return nil, fmt.Errorf("failed to configure host key callback: %w", err)
		}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retries := config.DialRetries
	if retries == 0 {
		retries = DefaultDialRetries
	}

	clientConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	var conn *ssh.Client
	dial := func() error {
		c, err := ssh.Dial("tcp", config.address(), clientConfig)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) {
				return err
			}
			return backoff.Permanent(err)
		}
		conn = c
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	notify := func(err error, wait time.Duration) {
		log.Warnf("Cannot reach %s, retrying in %s: %v", config.address(), wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(dial, b, notify); err != nil {
		return nil, fmt.Errorf("ssh to %s: %w", config.address(), err)
	}

	log.Infof("Connected to %s as %s", config.address(), config.User)
	return &Client{Client: conn, log: log}, nil
}

// Exec runs cmd in a new session and returns its standard output and
// standard error separately. Cancelling ctx closes the session.
func (c *Client) Exec(ctx context.Context, cmd string) ([]byte, []byte, error) {
	sess, err := c.NewSession()
	if err != nil {
		return nil, nil, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sess.Signal(ssh.SIGKILL)
			_ = sess.Close()
		case <-done:
		}
	}()

	err = sess.Run(cmd)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// SFTP opens an SFTP session over the connection.
func (c *Client) SFTP(opts ...sftp.ClientOption) (*sftp.Client, error) {
	return sftp.NewClient(c.Client, opts...)
}

// Close client net connection.
func (c *Client) Close() error {
	return c.Client.Close()
}
