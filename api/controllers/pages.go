package controllers

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Pages forwards page navigations that passed the route gate to the storefront
// frontend. Without an upstream every page is a 404.
func Pages(upstream string, logg *logger.Logger) (http.Handler, error) {
	upstream = strings.TrimSpace(upstream)
	if upstream == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "page not found"))
		}), nil
	}
	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pages upstream must be an absolute url").WithDetails(map[string]string{"upstream": upstream})
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storefront pages unavailable"))
	}
	return proxy, nil
}
