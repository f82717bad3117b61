package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jumpcut/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiBase() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return "http://" + cfg.Paths.APIBind
	}
	return "http://" + config.DefaultAPIBind
}

func (c *commandContext) httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// getJSON fetches an API resource and decodes the response into dst.
func (c *commandContext) getJSON(path string, dst any) error {
	resp, err := c.httpClient().Get(c.apiBase() + path)
	if err != nil {
		return wrapConnectError(err, c.apiBase())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dst)
}

// postJSON sends payload to an API endpoint and decodes the response.
func (c *commandContext) postJSON(path string, payload, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.httpClient().Post(c.apiBase()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return wrapConnectError(err, c.apiBase())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dst)
}

func decodeResponse(resp *http.Response, dst any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func wrapConnectError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `jumpcutd`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
