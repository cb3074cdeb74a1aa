package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/pkg/errs"
)

const novaMicroversionHeader = "X-OpenStack-Nova-API-Version"

// tokenSource returns the token IaaS calls are made with.
type tokenSource func(ctx context.Context) (string, error)

type apiCall struct {
	method string
	url    string
	body   interface{}
	out    interface{}
	want   []int
	header map[string]string
	// missingOK turns a 404 into success, for idempotent deletes.
	missingOK bool
}

type openstackClient struct {
	logger *logrus.Logger
	http   *http.Client
	token  tokenSource
}

func newOpenstackClient(l *logrus.Logger, token tokenSource) *openstackClient {
	return &openstackClient{
		logger: l,
		http:   &http.Client{},
		token:  token,
	}
}

func (o *openstackClient) do(ctx context.Context, c apiCall) error {
	var data io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		data = bytes.NewBuffer(b)
	}

	r, err := http.NewRequestWithContext(ctx, c.method, c.url, data)
	if err != nil {
		return errors.Wrapf(err, "failed to create request %s %s", c.method, c.url)
	}

	token, err := o.token(ctx)
	if err != nil {
		return err
	}
	r.Header.Add("X-Auth-Token", token)
	r.Header.Add("Content-Type", "application/json")
	for k, v := range c.header {
		r.Header.Add(k, v)
	}

	resp, err := o.http.Do(r)
	if err != nil {
		o.logger.WithError(err).WithField("url", c.url).Error("failed to send request")
		return errs.Infrastructure(errors.Wrapf(err, "failed to send request %s %s", c.method, c.url), "IaaS request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if c.missingOK {
			return nil
		}
		return errs.NotFound("%s not found", c.url)
	}

	if !accepted(resp.StatusCode, c.want) {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		o.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"url":         c.url,
			"error_msg":   string(b),
		}).Error("unexpected IaaS response")

		return errs.Infrastructure(
			errors.Errorf("status code: %v, error msg: %s", resp.StatusCode, string(b)),
			"unexpected response from %s %s", c.method, c.url)
	}

	if c.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(c.out); err != nil {
		return errs.Infrastructure(errors.Wrap(err, "failed to decode response"), "unreadable response from %s", c.url)
	}

	return nil
}

func accepted(code int, want []int) bool {
	if len(want) == 0 {
		return code >= 200 && code < 300
	}
	for _, w := range want {
		if code == w {
			return true
		}
	}

	return false
}
