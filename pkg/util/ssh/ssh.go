/*
Copyright 2025 The Rook Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ssh executes commands on cluster nodes over SSH. Chaos scenarios
// use it for the node-level failure injections (reboot, kubelet restart,
// network flap) that no Kubernetes API exposes.
package ssh

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "ssh")

// Settings hold the node access credentials. Password and key auth are both
// supported; when both are set the key wins.
type Settings struct {
	User     string
	Password string
	// KeyPath points at a PEM-encoded private key file.
	KeyPath string
	Port    int
	// Timeout bounds connection establishment and each remote command.
	Timeout time.Duration
}

// Client runs commands on one remote node.
type Client struct {
	host     string
	settings Settings
}

// NewClient returns a client for the given node address. No connection is
// made until Run is called; chaos scenarios reconnect per command because the
// node in between may have rebooted.
func NewClient(host string, settings Settings) (*Client, error) {
	if settings.User == "" {
		return nil, errors.New("ssh user is required")
	}
	if settings.Password == "" && settings.KeyPath == "" {
		return nil, errors.New("ssh password or key is required")
	}
	if settings.Port == 0 {
		settings.Port = 22
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	return &Client{host: host, settings: settings}, nil
}

// Run executes a command on the node and returns its combined output.
func (c *Client) Run(command string) (string, error) {
	config, err := c.clientConfig()
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.settings.Port))
	logger.Infof("running on %s: %s", addr, command)
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return "", errors.Wrapf(err, "failed to connect to %s", addr)
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open session to %s", addr)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	if err := session.Run(command); err != nil {
		return output.String(), errors.Wrapf(err, "remote command %q failed on %s", command, addr)
	}
	return output.String(), nil
}

// RunSudo executes a command through sudo. Reboot-style commands tear the
// connection down mid-command, which the caller must tolerate.
func (c *Client) RunSudo(command string) (string, error) {
	return c.Run(fmt.Sprintf("sudo -n %s", command))
}

func (c *Client) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.settings.KeyPath != "" {
		raw, err := os.ReadFile(c.settings.KeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read ssh key %s", c.settings.KeyPath)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse ssh key %s", c.settings.KeyPath)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(c.settings.Password))
	}

	return &ssh.ClientConfig{
		User: c.settings.User,
		Auth: auth,
		// test nodes are ephemeral, their host keys are not tracked
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.settings.Timeout,
	}, nil
}
