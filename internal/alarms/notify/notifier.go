package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	alarms "hydro-dashboard/internal/alarms/domain"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alerts through a template and sends them via a channel.
type Notifier struct {
	channel        Channel
	template       *Template
	clock          Clock
	logger         *zap.SugaredLogger
	mu             sync.Mutex
	sent           map[string]sendRecord
	dedupeWindow   time.Duration
	dashboardURL   string
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithDashboardURL adds a link back to the dashboard.
func WithDashboardURL(url string) Option {
	return func(n *Notifier) {
		n.dashboardURL = strings.TrimRight(url, "/")
	}
}

// WithRequestTimeout bounds a single channel send.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		logger:         hlog.Nop(),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier.
func (n *Notifier) Notify(ctx context.Context, alert alarms.Alert) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(alert, n.dashboardURL))
	if err != nil {
		n.logger.Warnw("alert template render failed", "alert_id", alert.ID, "error", err)
		return
	}
	if !n.shouldSend(alert, content) {
		return
	}
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	if err := n.channel.Send(ctx, content); err != nil {
		metrics.IncNotifyError("webhook")
		n.logger.Warnw("alert webhook send failed", "alert_id", alert.ID, "parameter", alert.Parameter, "error", err)
		return
	}
	n.markSent(alert, content)
}

func buildTemplateData(alert alarms.Alert, dashboardURL string) TemplateData {
	data := TemplateData{
		Title:     alert.Title,
		Body:      alert.Body,
		Parameter: string(alert.Parameter),
		Value:     alarms.FormatValue(alert.Value),
		Kind:      string(alert.Kind),
		Condition: conditionLabel(alert.Status),
		FiredAt:   alert.FiredAt.UTC().Format(time.RFC3339),
	}
	if spec, ok := sensors.Spec(alert.Parameter); ok {
		data.ParameterName = spec.Name
		data.Unit = spec.Unit
		data.Range = fmt.Sprintf("%s - %s%s", alarms.FormatValue(spec.Min), alarms.FormatValue(spec.Max), spec.Unit)
		value := alert.Value
		c := sensors.Classify(alert.Parameter, &value)
		data.Implication = c.Implication
		data.Action = c.Action
	}
	if dashboardURL != "" {
		data.DashboardURL = dashboardURL + "/?parameter=" + string(alert.Parameter)
	}
	return data
}

func conditionLabel(status sensors.Status) string {
	switch status {
	case sensors.StatusTooHigh:
		return "Too High"
	case sensors.StatusTooLow:
		return "Too Low"
	case sensors.StatusSensorError:
		return "Sensor Error"
	default:
		return string(status)
	}
}

func (n *Notifier) shouldSend(alert alarms.Alert, content string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alert)
	now := n.clock.Now().UTC()

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	return !(record.hash == hashContent(content) && now.Sub(record.at) < n.dedupeWindow)
}

func (n *Notifier) markSent(alert alarms.Alert, content string) {
	if n.dedupeWindow <= 0 {
		return
	}
	n.mu.Lock()
	n.sent[notificationKey(alert)] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alert alarms.Alert) string {
	return string(alert.Parameter) + "|" + string(alert.Kind)
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
