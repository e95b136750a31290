package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/somaplus/darasa/core"
)

type emailApi struct {
	svc      core.EmailService
	validate *validator.Validate
}

func registerEmailAPI(g *echo.Group, svc core.EmailService, validate *validator.Validate) {
	api := emailApi{svc: svc, validate: validate}

	g.POST("/email", api.send)
}

type (
	SendEmailRequest struct {
		To      string `json:"to" validate:"required,email"`
		Subject string `json:"subject" validate:"required"`
		Message string `json:"message" validate:"required"`
	}

	SendEmailResponse struct {
		Success bool `json:"success"`
	}
)

func (r *SendEmailRequest) Validate(validate *validator.Validate) error {
	r.To = core.CleanString(r.To, true /* lower */)
	r.Subject = core.CleanString(r.Subject)
	return validate.Struct(r)
}

// send delivers a message synchronously: 400 when a field is missing,
// 500 when delivery fails, 200 {"success":true} otherwise.
func (api *emailApi) send(ctx echo.Context) error {
	data := new(SendEmailRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: data.To}},
		Subject: data.Subject,
		BodyStr: data.Message,
	}
	if err := api.svc.SendMessage(msg); err != nil {
		return errDeliveryFailed
	}

	return ctx.JSON(http.StatusOK, SendEmailResponse{Success: true})
}
