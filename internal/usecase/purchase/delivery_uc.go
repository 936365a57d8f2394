package purchase

import (
	"context"
	"fmt"

	"github.com/doncapon/yemisshop-sub009/internal/notify"
	otpuc "github.com/doncapon/yemisshop-sub009/internal/usecase/otp"
)

// RequestDeliveryOTP issues a DELIVERY challenge for a shipped purchase order
// and texts the code to the order owner. Only the owner may request it.
func (u *Usecase) RequestDeliveryOTP(ctx context.Context, poID, actorUserID string) (*otpuc.IssueResult, notify.Report, error) {
	po, phone, err := u.ownedPO(ctx, poID, actorUserID)
	if err != nil {
		return nil, notify.Report{}, err
	}

	if po.Status != StatusShipped {
		return nil, notify.Report{}, fmt.Errorf("%w: purchase order is %s", ErrInvalidTransition, po.Status)
	}

	iss, err := u.gate.Issue(ctx, SubjectKey(po.ID), otpuc.PurposeDelivery)
	if err != nil {
		return nil, notify.Report{}, err
	}

	rep := notify.BestEffort(ctx, u.log, u.sender, phone,
		fmt.Sprintf("Code %s confirms delivery of your YemisShop package. Share it only with the courier at the door.", iss.Code))
	return iss, rep, nil
}

// ConfirmDelivery spends a verified DELIVERY token and marks the purchase
// order delivered. This is the trigger that makes the PO payout-eligible.
func (u *Usecase) ConfirmDelivery(ctx context.Context, poID, actorUserID, otpToken string) (*PurchaseOrder, error) {
	po, _, err := u.ownedPO(ctx, poID, actorUserID)
	if err != nil {
		return nil, err
	}
	if po.Status == StatusDelivered {
		// Safe retry: the client resent after a slow response.
		return po, nil
	}
	if po.Status != StatusShipped {
		return nil, fmt.Errorf("%w: purchase order is %s", ErrInvalidTransition, po.Status)
	}

	if err := u.gate.Consume(ctx, otpToken, SubjectKey(po.ID), otpuc.PurposeDelivery); err != nil {
		return nil, err
	}
	return u.store.MarkDelivered(ctx, po.ID, otpToken)
}

// ownedPO loads the PO and checks the actor owns the parent order. The
// owner's phone comes back alongside for the notification path.
func (u *Usecase) ownedPO(ctx context.Context, poID, actorUserID string) (*PurchaseOrder, string, error) {
	if poID == "" || actorUserID == "" {
		return nil, "", ErrInvalidInput
	}
	po, err := u.store.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, "", err
	}
	if po == nil {
		return nil, "", ErrNotFound
	}
	ownerID, phone, err := u.store.OrderOwner(ctx, poID)
	if err != nil {
		return nil, "", err
	}
	if ownerID != actorUserID {
		return nil, "", ErrNotOwner
	}
	return po, phone, nil
}

// Accept moves a physical supplier's PO into processing once the supplier
// acknowledges it; online POs get there via dispatch.
func (u *Usecase) Accept(ctx context.Context, poID string) (*PurchaseOrder, error) {
	if poID == "" {
		return nil, ErrInvalidInput
	}
	return u.store.UpdateStatus(ctx, poID, StatusPending, StatusProcessing)
}
