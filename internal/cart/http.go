package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"VortexStore/internal/order"
	"VortexStore/internal/session"
	"VortexStore/pkg/kit"
)

const checkoutMessage = "Payment successful!"

// Placer turns checked-out lines into an order.
type Placer interface {
	Place(ctx context.Context, owner string, lines []order.Line) (order.Order, error)
}

type Server struct {
	Carts   *Registry
	Catalog ProductSource
	Orders  Placer
	Log     *zap.Logger
	Metrics *Metrics
}

// View is what the cart dialog, the cart page and the badge render.
type View struct {
	Items []Item `json:"items"`
	Total int64  `json:"total"`
	Count int    `json:"count"`
}

func viewOf(s *Store) View {
	if s == nil {
		return View{Items: []Item{}}
	}
	items := s.Items()
	return View{Items: items, Total: total(items), Count: len(items)}
}

type addItemReq struct {
	ProductID   int    `json:"product_id" validate:"required,gt=0"`
	PriceOption string `json:"price_option" validate:"omitempty,oneof=discounted original"`
}

type updateQuantityReq struct {
	Quantity *int `json:"quantity" validate:"required,lte=10000"`
}

type checkoutResp struct {
	Order   order.Order `json:"order"`
	Message string      `json:"message"`
}

// Routes expects session.Identify to have run.
func (s *Server) Routes(r chi.Router) {
	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.get)
		cr.Delete("/", s.clear)
		cr.Get("/count", s.count)
		cr.Post("/items", s.addItem)
		cr.Patch("/items/{id}", s.updateQuantity)
		cr.Delete("/items/{id}", s.removeItem)
		cr.Post("/checkout", s.checkout)
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	c, ok := s.existingCart(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	c, ok := s.existingCart(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]int{"count": viewOf(c).Count})
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !kit.DecodeAndValidate(w, r, &req) {
		return
	}

	p, err := s.Catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		s.writeCatalogError(w, r, err, req.ProductID)
		return
	}

	c, ok := s.cartFor(w, r)
	if !ok {
		return
	}

	opt := PriceOption(req.PriceOption)
	if opt == "" {
		opt = PriceDiscounted
	}
	if err := c.AddItem(p.Ref(opt)); err != nil {
		s.logger().Warn("catalog returned unusable product", zap.Error(err), zap.Int("product_id", p.ID))
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) updateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req updateQuantityReq
	if !kit.DecodeAndValidate(w, r, &req) {
		return
	}

	c, ok := s.existingCart(w, r)
	if !ok {
		return
	}
	if c != nil {
		c.UpdateQuantity(id, *req.Quantity)
	}
	kit.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	c, ok := s.existingCart(w, r)
	if !ok {
		return
	}
	if c != nil {
		c.RemoveItem(id)
	}
	kit.WriteJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	owner, _ := session.FromContext(r.Context())
	if err := s.Carts.Drop(r.Context(), owner.Key()); err != nil {
		s.logger().Error("drop cart failed", zap.Error(err), zap.String("owner", owner.Key()))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	c, ok := s.existingCart(w, r)
	if !ok {
		return
	}
	owner, _ := session.FromContext(r.Context())

	var taken []Item
	if c != nil {
		taken = c.Take()
	}
	if len(taken) == 0 {
		s.Metrics.checkout("empty")
		kit.WriteError(w, r, http.StatusBadRequest, "cart empty", nil)
		return
	}

	lines := make([]order.Line, len(taken))
	for i, it := range taken {
		lines[i] = order.Line{ProductID: it.ID, Title: it.Title, Price: it.Price, Quantity: it.Quantity}
	}

	o, err := s.Orders.Place(r.Context(), owner.Key(), lines)
	if err != nil {
		c.Merge(taken)
		s.Metrics.checkout("failed")
		s.writeCheckoutError(w, r, err)
		return
	}

	s.Metrics.checkout("paid")
	kit.WriteJSON(w, http.StatusCreated, checkoutResp{Order: o, Message: checkoutMessage})
}

// cartFor returns the owner's cart, creating it if needed. Only adding an
// item goes through here.
func (s *Server) cartFor(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	return s.loadCart(w, r, true)
}

// existingCart returns a nil Store with ok set when the owner has no cart.
func (s *Server) existingCart(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	return s.loadCart(w, r, false)
}

func (s *Server) loadCart(w http.ResponseWriter, r *http.Request, create bool) (*Store, bool) {
	owner, ok := session.FromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no owner", nil)
		return nil, false
	}

	var (
		c   *Store
		err error
	)
	if create {
		c, err = s.Carts.Get(r.Context(), owner.Key())
	} else {
		c, _, err = s.Carts.Peek(r.Context(), owner.Key())
	}
	if err != nil {
		s.logger().Error("load cart failed", zap.Error(err), zap.String("owner", owner.Key()))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart unavailable", nil)
		return nil, false
	}
	return c, true
}

func itemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad item id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error, id int) {
	switch {
	case errors.Is(err, ErrCatalogNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "unknown product", map[string]any{"product_id": id})
	case errors.Is(err, ErrCatalogUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	default:
		s.logger().Warn("catalog error", zap.Error(err), zap.Int("product_id", id))
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	}
}

func (s *Server) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrBadLine), errors.Is(err, order.ErrDuplicateLine),
		errors.Is(err, order.ErrNoLines), errors.Is(err, order.ErrTotalOverflow):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		s.logger().Error("place order failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
