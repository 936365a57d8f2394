package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/doncapon/yemisshop-sub009/internal/notify"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("order not found")
	ErrNotOwner          = errors.New("order does not belong to actor")
	ErrUserMissing       = errors.New("user not found")
	ErrOfferMissing      = errors.New("supplier offer not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrAlreadyPaid       = errors.New("order already paid")
)

type Store interface {
	// Create inserts the order header and its items atomically, resolving the
	// customer unit price and the chosen supplier's unit cost per item.
	Create(ctx context.Context, in CheckoutInput) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, in ListInput) ([]Order, error)
	// UpdateStatus locks the order row, re-checks the transition under the
	// lock, and writes the new status.
	UpdateStatus(ctx context.Context, id, from, to string) (*Order, error)
	UserContact(ctx context.Context, userID string) (phone string, err error)
}

// Splitter fans a paid order out into purchase orders. Implemented by the
// split usecase; declared here so order does not import split.
type Splitter interface {
	Split(ctx context.Context, orderID string) error
}

type Usecase struct {
	store    Store
	gate     *otpuc.Gate
	splitter Splitter
	sender   notify.Sender
	log      *zap.Logger
}

func New(store Store, gate *otpuc.Gate, splitter Splitter, sender notify.Sender, log *zap.Logger) *Usecase {
	return &Usecase{store: store, gate: gate, splitter: splitter, sender: sender, log: log}
}

func SubjectKey(orderID string) string { return "order:" + orderID }

func (u *Usecase) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	if in.UserID == "" || len(in.Items) == 0 {
		return nil, ErrInvalidInput
	}
	for _, it := range in.Items {
		if it.ProductID == "" || it.SupplierID == "" || it.Qty <= 0 {
			return nil, ErrInvalidInput
		}
	}
	return u.store.Create(ctx, in)
}

func (u *Usecase) GetByID(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return u.store.GetByID(ctx, id)
}

func (u *Usecase) List(ctx context.Context, in ListInput) ([]Order, error) {
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	return u.store.List(ctx, in)
}

// RequestPayOTP issues a PAY_ORDER challenge for the order owner and texts
// the code to them. The notification is best-effort; cooldown violations
// surface as otp.ErrCooldown.
func (u *Usecase) RequestPayOTP(ctx context.Context, orderID, actorUserID string) (*otpuc.IssueResult, notify.Report, error) {
	o, err := u.ownedOrder(ctx, orderID, actorUserID)
	if err != nil {
		return nil, notify.Report{}, err
	}
	if o.Status != StatusPendingPayment {
		return nil, notify.Report{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}

	iss, err := u.gate.Issue(ctx, SubjectKey(o.ID), otpuc.PurposePayOrder)
	if err != nil {
		return nil, notify.Report{}, err
	}

	rep := u.text(ctx, o.UserID, fmt.Sprintf("Your YemisShop payment code is %s. It expires in 5 minutes.", iss.Code))
	return iss, rep, nil
}

// ConfirmPay spends a verified PAY_ORDER token, marks the order paid and
// fans it out into purchase orders exactly once.
func (u *Usecase) ConfirmPay(ctx context.Context, orderID, actorUserID, otpToken string) (*Order, error) {
	o, err := u.ownedOrder(ctx, orderID, actorUserID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status != StatusPendingPayment {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}

	if err := u.gate.Consume(ctx, otpToken, SubjectKey(o.ID), otpuc.PurposePayOrder); err != nil {
		return nil, err
	}

	paid, err := u.store.UpdateStatus(ctx, o.ID, StatusPendingPayment, StatusPaid)
	if err != nil {
		return nil, err
	}

	if err := u.splitter.Split(ctx, paid.ID); err != nil {
		// The order stays paid; splitting is guarded against re-invocation so
		// operators can rerun it after fixing the cause.
		u.log.Error("order split failed", zap.String("order_id", paid.ID), zap.Error(err))
		return paid, err
	}
	return paid, nil
}

// RequestCancelOTP is admin-initiated; the code goes to the customer so the
// cancellation cannot happen behind their back.
func (u *Usecase) RequestCancelOTP(ctx context.Context, orderID string) (*otpuc.IssueResult, notify.Report, error) {
	o, err := u.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, notify.Report{}, err
	}
	if o == nil {
		return nil, notify.Report{}, ErrNotFound
	}
	if !isValidTransition(o.Status, StatusCanceled) {
		return nil, notify.Report{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}

	iss, err := u.gate.Issue(ctx, SubjectKey(o.ID), otpuc.PurposeCancelOrder)
	if err != nil {
		return nil, notify.Report{}, err
	}

	rep := u.text(ctx, o.UserID, fmt.Sprintf("Code %s confirms cancellation of your YemisShop order. Ignore if unexpected.", iss.Code))
	return iss, rep, nil
}

func (u *Usecase) ConfirmCancel(ctx context.Context, orderID, otpToken string) (*Order, error) {
	o, err := u.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if !isValidTransition(o.Status, StatusCanceled) {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}

	if err := u.gate.Consume(ctx, otpToken, SubjectKey(o.ID), otpuc.PurposeCancelOrder); err != nil {
		return nil, err
	}
	return u.store.UpdateStatus(ctx, o.ID, o.Status, StatusCanceled)
}

func (u *Usecase) ownedOrder(ctx context.Context, orderID, actorUserID string) (*Order, error) {
	if orderID == "" || actorUserID == "" {
		return nil, ErrInvalidInput
	}
	o, err := u.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if o.UserID != actorUserID {
		return nil, ErrNotOwner
	}
	return o, nil
}

func (u *Usecase) text(ctx context.Context, userID, message string) notify.Report {
	phone, err := u.store.UserContact(ctx, userID)
	if err != nil {
		u.log.Warn("user contact lookup failed", zap.String("user_id", userID), zap.Error(err))
		return notify.Report{Error: err.Error()}
	}
	return notify.BestEffort(ctx, u.log, u.sender, phone, message)
}

func isValidTransition(from, to string) bool {
	switch from {
	case StatusPendingPayment:
		return to == StatusPaid || to == StatusCanceled
	case StatusPaid:
		return to == StatusDeliveredAll || to == StatusCanceled
	default:
		return false
	}
}
