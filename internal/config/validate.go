package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be a host:port address: %w", err)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine.Binary) == "" {
		return errors.New("engine.binary must be set")
	}
	if strings.TrimSpace(c.Engine.DefaultModel) == "" {
		return errors.New("engine.default_model must be set")
	}
	if strings.HasSuffix(c.Engine.DefaultModel, "_q") {
		return errors.New("engine.default_model must not be a quantized model")
	}
	if c.Engine.Bitrate <= 0 || c.Engine.Bitrate >= 320 {
		return errors.New("engine.bitrate must be between 1 and 319 kbps")
	}
	if c.Engine.Jobs <= 0 {
		return errors.New("engine.jobs must be positive")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.queue_poll_interval":  c.Worker.QueuePollInterval,
		"worker.error_retry_interval": c.Worker.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
