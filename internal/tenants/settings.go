package tenants

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

const DefaultTimezone = "America/Sao_Paulo"

// DefaultPaymentMethods applies when a tenant has not configured any.
var DefaultPaymentMethods = []string{"Dinheiro", "Pix", "Cartão de crédito", "Cartão de débito"}

// NotificationConfig drives the operator alert engine.
type NotificationConfig struct {
	SoundEnabled     bool `json:"soundEnabled"`
	AutoPrintEnabled bool `json:"autoPrintEnabled"`
}

// DisplayInfo is what receipts and vendor messages show about the tenant.
type DisplayInfo struct {
	Name     string         `json:"name"`
	Phone    string         `json:"phone"`
	Address  string         `json:"address"`
	Location *time.Location `json:"-"`
}

// Settings is the typed, defaulted view of a tenant row.
type Settings struct {
	TenantID       uuid.UUID
	Display        DisplayInfo
	Location       *time.Location
	ClosedMessage  string
	PaymentMethods []string
	Hours          models.BusinessHours
	Notifications  NotificationConfig
}

// FromModel applies defaults: sound on, auto-print off, São Paulo time and the default
// payment methods. ClosedMessage stays empty when the tenant has none.
func FromModel(t models.Tenant) (*Settings, error) {
	tz := strings.TrimSpace(t.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	s := &Settings{
		TenantID: t.ID,
		Display: DisplayInfo{
			Name:     t.Name,
			Phone:    t.Phone,
			Address:  t.Address,
			Location: loc,
		},
		Location:      loc,
		Hours:         t.BusinessHours,
		Notifications: NotificationConfig{SoundEnabled: true},
	}
	if t.ClosedMessage != nil && strings.TrimSpace(*t.ClosedMessage) != "" {
		s.ClosedMessage = strings.TrimSpace(*t.ClosedMessage)
	}
	if t.SoundNotificationEnabled != nil {
		s.Notifications.SoundEnabled = *t.SoundNotificationEnabled
	}
	if t.AutoPrintEnabled != nil {
		s.Notifications.AutoPrintEnabled = *t.AutoPrintEnabled
	}
	for _, m := range t.PaymentMethodsEnabled {
		if m = strings.TrimSpace(m); m != "" {
			s.PaymentMethods = append(s.PaymentMethods, m)
		}
	}
	if len(s.PaymentMethods) == 0 {
		s.PaymentMethods = append([]string(nil), DefaultPaymentMethods...)
	}
	return s, nil
}

// AcceptsPayment matches method against the enabled set, trimmed and case-insensitive.
// It returns the configured spelling.
func (s *Settings) AcceptsPayment(method string) (string, bool) {
	method = strings.TrimSpace(method)
	if method == "" {
		return "", false
	}
	for _, enabled := range s.PaymentMethods {
		if strings.EqualFold(enabled, method) {
			return enabled, true
		}
	}
	return "", false
}

// IsOpen evaluates the business hours at now in the tenant time zone. A tenant without
// any configured hours is always open. Windows closing before they open run past
// midnight; a window whose open equals its close lasts the whole day.
func (s *Settings) IsOpen(now time.Time) bool {
	if len(s.Hours) == 0 {
		return true
	}
	local := now.In(s.Location)
	minute := local.Hour()*60 + local.Minute()

	for _, w := range s.Hours[weekdayKey(local.Weekday())] {
		opens, closes, ok := parseWindow(w)
		if !ok {
			continue
		}
		switch {
		case opens == closes:
			return true
		case opens < closes:
			if minute >= opens && minute < closes {
				return true
			}
		default:
			if minute >= opens {
				return true
			}
		}
	}

	// tail of yesterday's overnight windows
	for _, w := range s.Hours[weekdayKey(local.AddDate(0, 0, -1).Weekday())] {
		opens, closes, ok := parseWindow(w)
		if !ok || opens <= closes {
			continue
		}
		if minute < closes {
			return true
		}
	}
	return false
}

func weekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func parseWindow(w models.BusinessWindow) (opens, closes int, ok bool) {
	opens, ok = parseClock(w.Open)
	if !ok {
		return 0, 0, false
	}
	closes, ok = parseClock(w.Close)
	return opens, closes, ok
}

// parseClock reads "HH:MM" into minutes after midnight. "24:00" is accepted as end of day.
func parseClock(value string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	if h == 24 && m == 0 {
		return 24 * 60, true
	}
	if h < 0 || h > 23 {
		return 0, false
	}
	return h*60 + m, true
}
