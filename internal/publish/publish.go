// Package publish delivers the encoded calendar to its destinations: the
// local output file and optional WebDAV, SFTP and S3 targets.
package publish

import (
	"context"
	"fmt"

	"dutycal/internal/concurrency"
	appLog "dutycal/internal/log"
)

// Sink is one destination for the encoded calendar.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	Publish(ctx context.Context, body []byte) error
}

// All publishes body to every sink concurrently. A failing sink is logged
// and does not stop the others; the returned errors are in sink order.
func All(ctx context.Context, sinks []Sink, body []byte) []error {
	return concurrency.ForEach(ctx, sinks, concurrency.ParallelOptions{MaxWorkers: len(sinks)},
		func(ctx context.Context, _ int, s Sink) error {
			if err := s.Publish(ctx, body); err != nil {
				appLog.Error("publish failed", err, "sink", s.Name())
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			appLog.Info("calendar published", "sink", s.Name(), "bytes", len(body))
			return nil
		})
}

// Config lists the optional remote targets. The local output file is
// always published.
type Config struct {
	WebDAV *WebDAVConfig `yaml:"webdav,omitempty" json:"webdav,omitempty"`
	SFTP   *SFTPConfig   `yaml:"sftp,omitempty" json:"sftp,omitempty"`
	S3     *S3Config     `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// Sinks builds the file sink for outputPath followed by every configured
// remote sink.
func (c Config) Sinks(outputPath string) ([]Sink, error) {
	sinks := []Sink{FileSink{Path: outputPath}}
	if c.WebDAV != nil {
		s, err := NewWebDAVSink(*c.WebDAV, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if c.SFTP != nil {
		s, err := NewSFTPSink(*c.SFTP)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if c.S3 != nil {
		s, err := NewS3Sink(*c.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
