package fulfillment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
)

type actionBody struct {
	Reason string       `json:"reason"`
	Remark *RemarkInput `json:"remark"`
}

type action func(ctx context.Context, companyID string, orderID, actorID int, body actionBody) (*models.Order, error)

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func staffScope(c *gin.Context) (companyID string, actorID int, orderID int, ok bool) {
	ctx := c.Request.Context()
	companyID, _ = utils.GetCompanyIdFromContext(ctx)
	actorID, _ = utils.GetUserIdFromContext(ctx)
	if companyID == "" || actorID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", 0, 0, false
	}
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return "", 0, 0, false
	}
	return companyID, actorID, orderID, true
}

func (s *Service) writeError(c *gin.Context, funcName string, err error) {
	var te *TransitionError
	var ie *InputError
	switch {
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": te.Error(), "action": te.Action, "stage": te.Stage})
	case errors.As(err, &ie):
		c.JSON(http.StatusBadRequest, gin.H{"error": ie.Error(), "field": ie.Field})
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidDeliveryLink):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		config.LogError(s.logger, "fulfillment", funcName, "request failed", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Service) actionHandler(funcName string, run action) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, actorID, orderID, ok := staffScope(c)
		if !ok {
			return
		}
		var body actionBody
		if err := bindOptional(c, &body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		order, err := run(c.Request.Context(), companyID, orderID, actorID, body)
		if err != nil {
			s.writeError(c, funcName, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (s *Service) SampleFreeIssueHandler() gin.HandlerFunc {
	return s.actionHandler("SampleFreeIssueHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.SampleFreeIssue(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) PrintHandler() gin.HandlerFunc {
	return s.actionHandler("PrintHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.Print(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) ReadyToDispatchHandler() gin.HandlerFunc {
	return s.actionHandler("ReadyToDispatchHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.ReadyToDispatch(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) HoldHandler() gin.HandlerFunc {
	return s.actionHandler("HoldHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.Hold(ctx, companyID, orderID, actorID, b.Reason, b.Remark)
	})
}

func (s *Service) RevertHoldHandler() gin.HandlerFunc {
	return s.actionHandler("RevertHoldHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.RevertHold(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) DeliveryCompleteHandler() gin.HandlerFunc {
	return s.actionHandler("DeliveryCompleteHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.CompleteDelivery(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) InvoiceCompleteHandler() gin.HandlerFunc {
	return s.actionHandler("InvoiceCompleteHandler", func(ctx context.Context, companyID string, orderID, actorID int, b actionBody) (*models.Order, error) {
		return s.CompleteInvoice(ctx, companyID, orderID, actorID, b.Remark)
	})
}

func (s *Service) ResendRiderSmsHandler() gin.HandlerFunc {
	return s.actionHandler("ResendRiderSmsHandler", func(ctx context.Context, companyID string, orderID, actorID int, _ actionBody) (*models.Order, error) {
		return s.ResendRiderSms(ctx, companyID, orderID, actorID)
	})
}

func (s *Service) DispatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, actorID, orderID, ok := staffScope(c)
		if !ok {
			return
		}
		var in DispatchInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		order, err := s.Dispatch(c.Request.Context(), companyID, orderID, actorID, in)
		if err != nil {
			s.writeError(c, "DispatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func (s *Service) AddRemarkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, actorID, orderID, ok := staffScope(c)
		if !ok {
			return
		}
		var in RemarkInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		remark, err := s.AddRemark(c.Request.Context(), companyID, orderID, actorID, in)
		if err != nil {
			s.writeError(c, "AddRemarkHandler", err)
			return
		}
		c.JSON(http.StatusCreated, remark)
	}
}

func (s *Service) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, _, orderID, ok := staffScope(c)
		if !ok {
			return
		}
		order, err := s.GetOrder(c.Request.Context(), companyID, orderID)
		if err != nil {
			s.writeError(c, "GetOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// DeliveryStatusHandler serves GET /public/delivery/:token.
func (s *Service) DeliveryStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := s.DeliveryStatus(c.Request.Context(), c.Param("token"))
		if err != nil {
			s.writeError(c, "DeliveryStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// ConfirmDeliveryHandler serves POST /public/delivery/:token. Only a body of
// {"confirmed": true} completes delivery; anything else reports the status.
func (s *Service) ConfirmDeliveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := struct {
			Confirmed bool `json:"confirmed"`
		}{}
		if err := bindOptional(c, &body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		token := c.Param("token")
		var (
			status *DeliveryStatus
			err    error
		)
		if body.Confirmed {
			status, err = s.ConfirmDelivery(c.Request.Context(), token)
		} else {
			status, err = s.DeliveryStatus(c.Request.Context(), token)
		}
		if err != nil {
			s.writeError(c, "ConfirmDeliveryHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
