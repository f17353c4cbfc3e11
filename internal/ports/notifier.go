package ports

import "github.com/bnema/rigpilot/internal/domain"

type Notifier interface {
	Notify(severity domain.Severity, message string) string
}
