package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/backend"
	"github.com/MarkoPoloResearchLab/kairix_panel/pkg/fanout"
)

// Menu badge element ids.
const (
	BadgeConversations = "badge-conversas"
	BadgeAutoResponses = "badge-respostas"
	BadgeKnowledgeBase = "badge-base-conhecimento"
	BadgeAttendants    = "badge-atendentes"

	logEventUpdateMenuBadge  = "update_menu_badge"
	logEventUpdateMenuBadges = "update_menu_badges"
)

// ErrUnknownBadge indicates a configured badge id the panel does not know how to count.
var ErrUnknownBadge = errors.New("panel: unknown menu badge")

var errMissingDocuments = errors.New("panel: knowledge listing without documents")

// DefaultBadgeIDs lists every menu badge in sidebar order.
var DefaultBadgeIDs = []string{BadgeConversations, BadgeAutoResponses, BadgeKnowledgeBase, BadgeAttendants}

// BadgeCount is the new text of one menu badge.
type BadgeCount struct {
	ID    string
	Count int
}

// MenuBadges holds the badges to update, in sidebar order. Badges whose fetch failed are
// absent and keep whatever they showed before.
type MenuBadges struct {
	Counts []BadgeCount
}

// Count returns the new count of the badge with id.
func (badges MenuBadges) Count(id string) (int, bool) {
	for _, badgeCount := range badges.Counts {
		if badgeCount.ID == id {
			return badgeCount.Count, true
		}
	}
	return 0, false
}

type badgeCounter func(ctx context.Context, api API, orderID int64) (int, error)

var badgeCounters = map[string]badgeCounter{
	BadgeConversations: func(ctx context.Context, api API, orderID int64) (int, error) {
		conversations, err := api.Conversations(ctx, orderID, backend.DateRange{})
		return len(conversations), err
	},
	BadgeAutoResponses: func(ctx context.Context, api API, orderID int64) (int, error) {
		responses, err := api.AutoResponses(ctx, orderID)
		return len(responses), err
	},
	BadgeKnowledgeBase: func(ctx context.Context, api API, orderID int64) (int, error) {
		listing, err := api.KnowledgeDocuments(ctx, orderID)
		if err == nil && listing.Documents == nil {
			err = errMissingDocuments
		}
		return len(listing.Documents), err
	},
	BadgeAttendants: func(ctx context.Context, api API, orderID int64) (int, error) {
		attendants, err := api.Attendants(ctx, orderID)
		return len(attendants), err
	},
}

// BadgeUpdater counts the collections behind the menu badges present on the page.
type BadgeUpdater struct {
	badgeIDs []string
	logger   *zap.Logger
}

// NewBadgeUpdater builds a BadgeUpdater for the badges present on the page.
func NewBadgeUpdater(badgeIDs []string, logger *zap.Logger) (*BadgeUpdater, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	present := make([]string, 0, len(badgeIDs))
	seen := make(map[string]struct{}, len(badgeIDs))
	for _, badgeID := range badgeIDs {
		trimmedID := strings.TrimSpace(badgeID)
		if trimmedID == "" {
			continue
		}
		if _, known := badgeCounters[trimmedID]; !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBadge, trimmedID)
		}
		if _, duplicate := seen[trimmedID]; duplicate {
			continue
		}
		seen[trimmedID] = struct{}{}
		present = append(present, trimmedID)
	}
	return &BadgeUpdater{badgeIDs: present, logger: logger}, nil
}

// Update fetches the current order and then every present badge's collection in parallel.
// Without orders nothing is fetched. A failing fetch leaves only its own badge unchanged.
// Only ErrUnauthorized from the order fetch is returned.
func (updater *BadgeUpdater) Update(ctx context.Context, api API) (MenuBadges, error) {
	orders, ordersErr := api.Orders(ctx)
	if ordersErr != nil {
		updater.logger.Warn(logEventUpdateMenuBadges, zap.Error(ordersErr))
		if errors.Is(ordersErr, backend.ErrUnauthorized) {
			return MenuBadges{}, ordersErr
		}
		return MenuBadges{}, nil
	}
	if len(orders) == 0 {
		return MenuBadges{}, nil
	}
	orderID := orders[0].ID

	counts := make([]int, len(updater.badgeIDs))
	tasks := make([]fanout.Task, 0, len(updater.badgeIDs))
	for index, badgeID := range updater.badgeIDs {
		index, counter := index, badgeCounters[badgeID]
		tasks = append(tasks, fanout.Task{
			Name: badgeID,
			Run: func(taskContext context.Context) error {
				count, countErr := counter(taskContext, api, orderID)
				if countErr != nil {
					return countErr
				}
				counts[index] = count
				return nil
			},
		})
	}
	result := fanout.Join(ctx, tasks...)

	badges := MenuBadges{Counts: make([]BadgeCount, 0, len(updater.badgeIDs))}
	for index, badgeID := range updater.badgeIDs {
		if taskErr, failed := result.Errors[badgeID]; failed {
			updater.logger.Warn(logEventUpdateMenuBadge, zap.String("badge", badgeID), zap.Int64("order_id", orderID), zap.Error(taskErr))
			continue
		}
		badges.Counts = append(badges.Counts, BadgeCount{ID: badgeID, Count: counts[index]})
	}
	return badges, nil
}
