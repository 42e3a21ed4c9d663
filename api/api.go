// Package api is the HTTP surface of the DeliciousFood server. It routes the
// REST endpoints with chi, carries a unit-of-work scope through every
// request, and translates service errors into status codes.
package api

import (
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/logging"
	"github.com/AUrban/DeliciousFood/service"
	"github.com/AUrban/DeliciousFood/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AUrban/DeliciousFood/dao"
)

// API holds the handlers of the server and the services they call into.
type API struct {
	provider *db.DataAccessProvider
	tokens   token.Provider
	log      logging.Logger

	users    *service.UserService
	foods    *service.FoodService
	accounts *service.AccountService
	policy   service.PolicyValidator
}

// New assembles the API over the given store. calories may be nil, in which
// case food records must carry their calories explicitly.
func New(store *db.Store, tokens token.Provider, calories service.CaloriesProvider, log logging.Logger) *API {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &API{
		provider: db.NewDataAccessProvider(store.DB),
		tokens:   tokens,
		log:      log,
		users:    service.NewUserService(store),
		foods:    service.NewFoodService(store, calories),
		accounts: service.NewAccountService(store, tokens),
	}
}

// Routes returns the router of all endpoints, ready to be mounted on the
// configured URI base.
func (api *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(api.requestScope)

	r.Post("/login", api.ep(api.epLogin))
	r.Get("/logout", api.ep(api.epLogout))
	r.Get("/refresh", api.ep(api.epRefresh))

	r.Group(func(r chi.Router) {
		r.Use(api.requireAuth)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(api.requirePolicy(dao.PolicyModerators | dao.PolicyAdmins))

				r.Get("/", api.ep(api.epListUsers))
				r.Post("/", api.ep(api.epCreateUser))
				r.Get("/{id}", api.ep(api.epGetUser))
				r.Put("/{id}", api.ep(api.epUpdateUser))
				r.Delete("/{id}", api.ep(api.epDeleteUser))
			})

			r.Route("/{userId}/foods", func(r chi.Router) {
				r.Use(api.requirePolicy(dao.PolicyUsers | dao.PolicyAdmins))

				r.Get("/", api.ep(api.epListUserFoods))
				r.Post("/", api.ep(api.epCreateUserFood))
				r.Get("/{id}", api.ep(api.epGetUserFood))
				r.Put("/{id}", api.ep(api.epUpdateUserFood))
				r.Delete("/{id}", api.ep(api.epDeleteUserFood))
			})
		})

		r.Route("/foods", func(r chi.Router) {
			r.Use(api.requirePolicy(dao.PolicyUsers | dao.PolicyAdmins))

			r.Get("/", api.ep(api.epListFoods))
			r.Get("/public", api.ep(api.epListPublicFoods))
			r.Get("/delicious", api.ep(api.epListDeliciousFoods))
			r.Post("/delicious", api.ep(api.epMarkDelicious))
		})
	})

	return r
}
