package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	appLog "dutycal/internal/log"
)

// SFTPConfig describes an SFTP upload target. Either Password or KeyFile
// must be set. Without KnownHosts the host key is not verified.
type SFTPConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	User       string `yaml:"user" json:"user"`
	Password   string `yaml:"password" json:"-"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
	KnownHosts string `yaml:"known_hosts" json:"known_hosts"`
	// RemotePath is the full remote file path.
	RemotePath string `yaml:"remote_path" json:"remote_path"`
}

// SFTPSink uploads the calendar over SFTP. Each publish opens its own
// connection.
type SFTPSink struct {
	cfg    SFTPConfig
	sshCfg *ssh.ClientConfig
}

func NewSFTPSink(cfg SFTPConfig) (*SFTPSink, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.RemotePath == "" {
		return nil, errors.New("sftp: host, user and remote_path are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}

	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("sftp: parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp: password or key_file is required")
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("sftp: known_hosts: %w", err)
		}
		hostKey = cb
	} else {
		appLog.Warn("sftp host key verification disabled", "host", cfg.Host)
	}

	return &SFTPSink{
		cfg: cfg,
		sshCfg: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         20 * time.Second,
		},
	}, nil
}

func (s *SFTPSink) Name() string { return "sftp:" + s.cfg.Host + ":" + s.cfg.RemotePath }

func (s *SFTPSink) Publish(ctx context.Context, body []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, s.sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("sftp: dial %s: %w", addr, r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	dir := path.Dir(s.cfg.RemotePath)
	if err := client.MkdirAll(dir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", dir, err)
	}

	// Upload beside the target, then rename over it.
	tmp := path.Join(dir, "."+path.Base(s.cfg.RemotePath)+".tmp")
	dst, err := client.Create(tmp)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", tmp, err)
	}
	if _, err := dst.Write(body); err != nil {
		dst.Close()
		return fmt.Errorf("sftp: write: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: close: %w", err)
	}
	if err := client.PosixRename(tmp, s.cfg.RemotePath); err != nil {
		return fmt.Errorf("sftp: rename: %w", err)
	}
	return nil
}
