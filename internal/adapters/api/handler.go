package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/gigportal/bid-service/internal/domain/bids"
	"github.com/gigportal/bid-service/pkg/auth"
)

// BidService is the slice of the lifecycle service the boundary consumes
type BidService interface {
	Open(ctx context.Context, cmd bids.OpenBidCommand) (*bids.Bid, error)
	Accept(ctx context.Context, cmd bids.AcceptBidCommand) (bool, error)
}

// messageResponse is the error body shape for every failure
type messageResponse struct {
	Message string `json:"message"`
}

// BidHandler binds the REST routes to the lifecycle service and the store
type BidHandler struct {
	service  BidService
	bidRepo  bids.BidRepository
	validate *validator.Validate
}

// NewBidHandler creates the handler and registers its routes. Listing and
// detail routes are public; mutations require authentication.
func NewBidHandler(e *echo.Echo, service BidService, bidRepo bids.BidRepository, authMW echo.MiddlewareFunc) *BidHandler {
	h := &BidHandler{
		service:  service,
		bidRepo:  bidRepo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	e.GET("/bids", h.GetAll)
	e.GET("/bids/freelancer/:id", h.GetByFreelancerID)
	e.GET("/bids/project/:projectId", h.GetByProjectID)
	e.GET("/bids/:id", h.GetByID)

	e.POST("/bids", h.OpenBid, authMW)
	e.PUT("/bids/:id", h.AcceptBid, authMW)
	e.DELETE("/bids/:id", h.DeleteBid, authMW)

	return h
}

type openBidInput struct {
	ProjectID    string `json:"projectId" validate:"required,uuid"`
	FreelancerID string `json:"freelancerId" validate:"required,uuid"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	Message      string `json:"message" validate:"max=2000"`
}

type acceptBidInput struct {
	ID           string `json:"id" validate:"required,uuid"`
	ProjectID    string `json:"projectId" validate:"required,uuid"`
	FreelancerID string `json:"freelancerId" validate:"required,uuid"`
}

type bidDTO struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	FreelancerID string `json:"freelancerId"`
	Amount       int64  `json:"amount"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

// OpenBid places a bid on a project. The authenticated caller must be the
// freelancer named in the body.
func (h *BidHandler) OpenBid(c echo.Context) error {
	var input openBidInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"Input data is not formed correctly"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}

	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, messageResponse{"missing authenticated user"})
	}
	if input.FreelancerID != userID {
		return c.JSON(http.StatusBadRequest, messageResponse{"User doesn't have access to this bid"})
	}

	cmd := bids.OpenBidCommand{
		ProjectID:    uuid.MustParse(input.ProjectID),
		FreelancerID: uuid.MustParse(input.FreelancerID),
		Amount:       input.Amount,
		Message:      input.Message,
	}

	bid, err := h.service.Open(c.Request().Context(), cmd)
	if err != nil {
		if errors.Is(err, bids.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, messageResponse{"User not found"})
		}
		// Deliberately permissive: any other failure surfaces as a client
		// error carrying the error's message.
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}

	return c.JSON(http.StatusOK, toDTO(bid))
}

// AcceptBid lets a project owner accept a bid. The bearer token is forwarded
// downstream for the project update.
func (h *BidHandler) AcceptBid(c echo.Context) error {
	var input acceptBidInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"Input data is not formed correctly"})
	}
	if input.ID != c.Param("id") {
		return c.JSON(http.StatusBadRequest, messageResponse{"Invalid id(s)"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}

	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, messageResponse{"missing authenticated user"})
	}
	token, _ := auth.GetRawToken(c)

	cmd := bids.AcceptBidCommand{
		BidID:        uuid.MustParse(input.ID),
		ProjectID:    uuid.MustParse(input.ProjectID),
		FreelancerID: uuid.MustParse(input.FreelancerID),
		Token:        token,
		CallerID:     uuid.MustParse(userID),
	}

	ok, err := h.service.Accept(c.Request().Context(), cmd)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}
	if !ok {
		// A remote refusal is surfaced identically to a rule violation
		return c.JSON(http.StatusBadRequest, messageResponse{bids.ErrInvalidBid.Error()})
	}

	return c.NoContent(http.StatusOK)
}

// GetAll returns every bid
func (h *BidHandler) GetAll(c echo.Context) error {
	list, err := h.bidRepo.GetAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}
	return c.JSON(http.StatusOK, toDTOs(list))
}

// GetByFreelancerID returns all bids placed by a freelancer
func (h *BidHandler) GetByFreelancerID(c echo.Context) error {
	freelancerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"invalid id"})
	}

	list, err := h.bidRepo.GetByFreelancerID(c.Request().Context(), freelancerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}
	return c.JSON(http.StatusOK, toDTOs(list))
}

// GetByProjectID returns all bids placed on a project
func (h *BidHandler) GetByProjectID(c echo.Context) error {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"invalid projectId"})
	}

	list, err := h.bidRepo.GetByProjectID(c.Request().Context(), projectID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}
	return c.JSON(http.StatusOK, toDTOs(list))
}

// GetByID returns a single bid
func (h *BidHandler) GetByID(c echo.Context) error {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"invalid id"})
	}

	bid, err := h.bidRepo.GetByID(c.Request().Context(), bidID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}
	return c.JSON(http.StatusOK, toDTO(bid))
}

// DeleteBid removes a bid. Only its owning freelancer may delete it; the
// delete is a raw store removal with no interaction with project state.
func (h *BidHandler) DeleteBid(c echo.Context) error {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{"invalid id"})
	}

	bid, err := h.bidRepo.GetByID(c.Request().Context(), bidID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}

	userID, _ := auth.GetUserID(c)
	if bid.FreelancerID.String() != userID {
		return c.JSON(http.StatusBadRequest, messageResponse{"User doesn't have access to this resource"})
	}

	if err := h.bidRepo.Delete(c.Request().Context(), bidID); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{err.Error()})
	}

	return c.NoContent(http.StatusOK)
}

func toDTO(bid *bids.Bid) bidDTO {
	return bidDTO{
		ID:           bid.ID.String(),
		ProjectID:    bid.ProjectID.String(),
		FreelancerID: bid.FreelancerID.String(),
		Amount:       bid.Amount,
		Message:      bid.Message,
		Status:       string(bid.Status),
		CreatedAt:    bid.CreatedAt.Format(time.RFC3339),
	}
}

func toDTOs(list []*bids.Bid) []bidDTO {
	dtos := make([]bidDTO, len(list))
	for i, bid := range list {
		dtos[i] = toDTO(bid)
	}
	return dtos
}
