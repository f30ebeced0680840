package service

import (
	"context"
	"strings"

	"storestock/backend/internal/apperror"
	"storestock/backend/internal/cart"
	"storestock/backend/internal/domain"
	"storestock/backend/internal/logger"
)

func cartKey(session string) string {
	if session = strings.TrimSpace(session); session != "" {
		return session
	}
	return cart.DefaultKey
}

func (s *Service) loadCart(ctx context.Context, session string) (domain.Cart, error) {
	c, err := s.carts.Load(ctx, cartKey(session))
	if err != nil {
		return domain.Cart{}, apperror.NewStoreUnavailable(err)
	}
	return cart.Normalize(c), nil
}

func (s *Service) saveCart(ctx context.Context, session string, c domain.Cart) error {
	if err := s.carts.Save(ctx, cartKey(session), c); err != nil {
		return apperror.NewStoreUnavailable(err)
	}
	return nil
}

func (s *Service) GetCart(ctx context.Context, session string) (domain.Cart, error) {
	return s.loadCart(ctx, session)
}

func (s *Service) AddToCart(ctx context.Context, session string, req domain.CartLineRequest) (domain.Cart, error) {
	current, err := s.loadCart(ctx, session)
	if err != nil {
		return domain.Cart{}, err
	}

	next, err := cart.AddLine(current, req.Store, domain.CartLine{
		Product:  req.Product,
		Color:    req.Color,
		Storage:  req.Storage,
		Quantity: req.Quantity,
	})
	s.metrics.ObserveCartMutation("add", err)
	if err != nil {
		return current, err
	}
	if err := s.saveCart(ctx, session, next); err != nil {
		return current, err
	}
	return next, nil
}

// SetCartQuantity leaves the cart as is when no line has key.
func (s *Service) SetCartQuantity(ctx context.Context, session string, key string, quantity int) (domain.Cart, error) {
	current, err := s.loadCart(ctx, session)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, ok := cart.Find(current, key); !ok {
		return current, nil
	}

	next := cart.SetQuantity(current, key, quantity)
	s.metrics.ObserveCartMutation("set_quantity", nil)
	if err := s.saveCart(ctx, session, next); err != nil {
		return current, err
	}
	return next, nil
}

func (s *Service) RemoveCartLine(ctx context.Context, session string, key string) (domain.Cart, error) {
	current, err := s.loadCart(ctx, session)
	if err != nil {
		return domain.Cart{}, err
	}

	next := cart.RemoveLine(current, key)
	s.metrics.ObserveCartMutation("remove", nil)
	if err := s.saveCart(ctx, session, next); err != nil {
		return current, err
	}
	return next, nil
}

func (s *Service) ClearCart(ctx context.Context, session string) (domain.Cart, error) {
	if err := s.carts.Delete(ctx, cartKey(session)); err != nil {
		return domain.Cart{}, apperror.NewStoreUnavailable(err)
	}
	s.metrics.ObserveCartMutation("clear", nil)
	return cart.Clear(), nil
}

// CheckoutCart submits the cart as one sale and clears it. Line prices come
// from req.Prices by line key; lines without one are priced from inventory.
func (s *Service) CheckoutCart(ctx context.Context, session string, req domain.CartCheckoutRequest) (*domain.SaleReceipt, error) {
	current, err := s.loadCart(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(current.Items) == 0 || current.Store == nil {
		return nil, apperror.NewValidation("cart is empty")
	}

	sub := domain.SaleSubmission{
		Store: *current.Store,
		Time:  req.Time,
		Lines: make([]domain.SaleLine, 0, len(current.Items)),
	}
	for _, item := range current.Items {
		line := domain.SaleLine{
			Product:  item.Product,
			Color:    item.Color,
			Storage:  item.Storage,
			Quantity: item.Quantity,
		}
		if price, ok := req.Prices[item.Key]; ok {
			line.Price = &price
		}
		sub.Lines = append(sub.Lines, line)
	}

	receipt, err := s.SubmitSale(ctx, sub)
	s.metrics.ObserveCartMutation("checkout", err)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Delete(ctx, cartKey(session)); err != nil {
		logger.Warn(ctx, "cart not cleared after checkout",
			"component", "service",
			"submission_id", receipt.SubmissionID,
			"error", err,
		)
	}
	return receipt, nil
}
