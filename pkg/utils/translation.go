package utils

import (
	"context"

	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// TranslateFunc is swapped out in tests.
var TranslateFunc = Translate

// Translate renders message id with the request's localizer. It returns ""
// when the context carries no localizer or the bundle lacks the message, so
// callers keep their own default text.
func Translate(ctx context.Context, id string, data map[string]interface{}) string {
	l, ok := ctx.Value(LocalizerKey).(*i18n.Localizer)
	if !ok {
		return ""
	}

	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return ""
	}

	return msg
}
