package notifications

import (
	"context"
	"fmt"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/google/uuid"
)

type sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type courierSource interface {
	ListActiveCouriers(ctx context.Context) ([]models.User, error)
}

type addressDescriber interface {
	Describe(ctx context.Context, id uuid.UUID) (string, error)
}

type userSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service fans pickup events out to Telegram. Delivery is best effort:
// a dead bot or an unreachable chat never fails the operation that
// triggered the message, it only shows up in the log.
type Service struct {
	logg         *logger.Logger
	sender       sender
	couriers     courierSource
	addresses    addressDescriber
	users        userSource
	adminChatIDs []int64
}

// ServiceParams lists the dependencies a notification service needs.
type ServiceParams struct {
	Logger       *logger.Logger
	Sender       sender
	Couriers     courierSource
	Addresses    addressDescriber
	Users        userSource
	AdminChatIDs []int64
}

// NewService wires a notification service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if params.Couriers == nil {
		return nil, fmt.Errorf("courier source required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address describer required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user source required")
	}
	return &Service{
		logg:         params.Logger,
		sender:       params.Sender,
		couriers:     params.Couriers,
		addresses:    params.Addresses,
		users:        params.Users,
		adminChatIDs: params.AdminChatIDs,
	}, nil
}

// OrderCreated tells every active courier about a new pickup.
func (s *Service) OrderCreated(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}

	location := s.describe(ctx, order.AddressID)
	kind := "Pickup"
	if order.IsSubscription {
		kind = "Subscription pickup"
	}
	text := fmt.Sprintf("%s on %s, %s\n%s",
		kind, order.Date.Format("2006-01-02"), order.TimeSlot, location)

	couriers, err := s.couriers.ListActiveCouriers(ctx)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "list couriers for notification", err)
		return
	}
	for _, courier := range couriers {
		s.deliver(ctx, courier.TelegramID, text, order.ID)
	}
}

// OrderCancelled lets couriers drop a pickup from their day.
func (s *Service) OrderCancelled(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}

	location := s.describe(ctx, order.AddressID)
	text := fmt.Sprintf("Pickup on %s cancelled\n%s", order.Date.Format("2006-01-02"), location)

	couriers, err := s.couriers.ListActiveCouriers(ctx)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "list couriers for notification", err)
		return
	}
	for _, courier := range couriers {
		s.deliver(ctx, courier.TelegramID, text, order.ID)
	}
}

// ClientOrderConfirmed tells the client their paid pickup is on the
// calendar. Clients without a linked Telegram account are skipped.
func (s *Service) ClientOrderConfirmed(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}

	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "load client for notification", err)
		return
	}
	if user.TelegramID == 0 {
		return
	}

	location := s.describe(ctx, order.AddressID)
	text := fmt.Sprintf("Pickup scheduled for %s, %s\n%s",
		order.Date.Format("2006-01-02"), order.TimeSlot, location)
	s.deliver(ctx, user.TelegramID, text, order.ID)
}

// AdminNewOrder flags a freshly paid pickup to the operations chats.
func (s *Service) AdminNewOrder(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}

	clientName := "client"
	if user, err := s.users.FindByID(ctx, order.UserID); err == nil && user.Name != "" {
		clientName = user.Name
	}
	location := s.describe(ctx, order.AddressID)
	text := fmt.Sprintf("New order from %s\n%s, %s\n%s",
		clientName, order.Date.Format("2006-01-02"), order.TimeSlot, location)
	for _, chatID := range s.adminChatIDs {
		s.deliver(ctx, chatID, text, order.ID)
	}
}

// DailySummary reports a generation run to the operations chats.
func (s *Service) DailySummary(ctx context.Context, date string, generated, skipped int) {
	text := fmt.Sprintf("Generation run %s: %d created, %d skipped", date, generated, skipped)
	for _, chatID := range s.adminChatIDs {
		if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "chat_id", chatID), "daily summary delivery failed")
		}
	}
}

func (s *Service) describe(ctx context.Context, addressID uuid.UUID) string {
	location, err := s.addresses.Describe(ctx, addressID)
	if err != nil {
		return "address unavailable"
	}
	return location
}

func (s *Service) deliver(ctx context.Context, chatID int64, text string, orderID uuid.UUID) {
	if err := s.sender.SendMessage(ctx, chatID, text); err != nil {
		logCtx := s.logg.WithField(s.logg.WithOrderID(ctx, orderID.String()), "chat_id", chatID)
		s.logg.Warn(logCtx, "notification delivery failed")
	}
}
