package eaip

import (
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("eaipviewer/internal/eaip")
var meter = otel.Meter("eaipviewer/internal/eaip")

const (
	path_captcha      = "/login/captcha"
	path_login        = "/login/login"
	path_publications = "/publication/listByLoginPage"
	path_packages     = "/package/listPage"
	path_admin        = "/user/validSuperAdmin"
)
