package service

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"embed"
	"encoding/base64"
	"encoding/hex"
	"text/template"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sethvargo/go-password/password"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/pkg/errs"
)

//go:embed scripts/guest-init.sh.tpl
var scripts embed.FS

var guestInitTemplate = template.Must(template.ParseFS(scripts, "scripts/guest-init.sh.tpl"))

// GuestInit is what a new instance needs to find and authenticate against
// the control plane.
type GuestInit struct {
	InstanceID         string
	TenantID           string
	ClusterID          string
	Role               string
	ShardID            string
	ReplicaSet         string
	ClusterKey         string
	Manager            string
	Version            string
	ControllerEndpoint string
	GuestKey           string
	AgentPort          int
}

// GenerateUserData renders the boot script of a guest, base64 encoded the
// way the compute API expects user_data.
func GenerateUserData(init GuestInit) (string, error) {
	var tpl bytes.Buffer
	if err := guestInitTemplate.Execute(&tpl, init); err != nil {
		return "", err
	}

	return Base64Encoder(tpl.String()), nil
}

func Base64Encoder(data string) string {
	return base64.StdEncoding.EncodeToString([]byte(data))
}

// GenerateSecret returns a random secret usable as a guest key, cluster key
// or admin password.
func GenerateSecret() (string, error) {
	return password.Generate(32, 8, 0, false, true)
}

func HashGuestKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

func GuestKeyMatches(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(HashGuestKey(key)), []byte(hash)) == 1
}

// iaasRetry bounds the retries of idempotent IaaS reads and deletes.
type iaasRetry struct {
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
}

func defaultIaaSRetry() iaasRetry {
	return iaasRetry{Attempts: 3, Delay: time.Second, Clock: clock.WallClock}
}

// retryIaaS calls fn until it succeeds, returns a non infrastructure error
// or runs out of attempts.
func retryIaaS(logger *logrus.Entry, r iaasRetry, op string, fn func() error) error {
	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !errs.Is(err, errs.KindInfrastructure)
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			logger.WithError(err).Warnf("%s failed, attempt %d", op, attempt)
		},
		Attempts:    r.Attempts,
		Delay:       r.Delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       r.Clock,
	})
	if retry.IsAttemptsExceeded(err) && lastErr != nil {
		return lastErr
	}

	return err
}
