package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/service"
	"github.com/go-chi/chi/v5"
)

// filterModel reads the filter and paging query parameters of a listing
// request.
func filterModel(req *http.Request) (*service.FilterModel, error) {
	fm := &service.FilterModel{
		Filter: req.URL.Query().Get("filter"),
	}

	if raw := req.URL.Query().Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return nil, deliciousfood.NewValidationError("skip", "Skip must be a non-negative integer!")
		}
		fm.Skip = &skip
	}
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, deliciousfood.NewValidationError("limit", "Limit must be a non-negative integer!")
		}
		fm.Limit = &limit
	}
	return fm, nil
}

func urlID(req *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(req, param))
	if err != nil {
		return 0, deliciousfood.NewValidationError(param, "The route parameter must be an integer!")
	}
	return id, nil
}

func decodeBody(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return deliciousfood.NewValidationError("body", "The request body is malformed!")
	}
	return nil
}

func (api *API) epLogin(req *http.Request) (int, any, error) {
	var lm service.LoginViewModel
	if err := decodeBody(req, &lm); err != nil {
		return 0, nil, err
	}

	tokens, err := api.accounts.Login(req.Context(), lm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, tokens, nil
}

func (api *API) epLogout(req *http.Request) (int, any, error) {
	refresh := req.URL.Query().Get("refreshToken")
	if err := api.accounts.Logout(req.Context(), refresh); err != nil {
		return 0, nil, err
	}
	return http.StatusNoContent, nil, nil
}

func (api *API) epRefresh(req *http.Request) (int, any, error) {
	refresh := req.URL.Query().Get("refreshToken")
	tokens, err := api.accounts.Refresh(req.Context(), refresh)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, tokens, nil
}

func (api *API) epListUsers(req *http.Request) (int, any, error) {
	fm, err := filterModel(req)
	if err != nil {
		return 0, nil, err
	}

	users, err := api.users.Get(req.Context(), fm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, users, nil
}

func (api *API) epGetUser(req *http.Request) (int, any, error) {
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}

	user, err := api.users.GetBy(req.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, user, nil
}

func (api *API) epCreateUser(req *http.Request) (int, any, error) {
	var em service.UserEditModel
	if err := decodeBody(req, &em); err != nil {
		return 0, nil, err
	}

	created, err := api.users.Save(req.Context(), &em)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, created, nil
}

func (api *API) epUpdateUser(req *http.Request) (int, any, error) {
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}
	var em service.UserEditModel
	if err := decodeBody(req, &em); err != nil {
		return 0, nil, err
	}

	updated, err := api.users.Update(req.Context(), id, &em)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, updated, nil
}

func (api *API) epDeleteUser(req *http.Request) (int, any, error) {
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}

	deleted, err := api.users.Delete(req.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, deleted, nil
}

// userFoods derives the food service scoped to the user named in the route.
func (api *API) userFoods(req *http.Request) (*service.FoodService, error) {
	userID, err := urlID(req, "userId")
	if err != nil {
		return nil, err
	}
	return api.foods.ForUser(req.Context(), userID)
}

func (api *API) epListUserFoods(req *http.Request) (int, any, error) {
	foods, err := api.userFoods(req)
	if err != nil {
		return 0, nil, err
	}
	fm, err := filterModel(req)
	if err != nil {
		return 0, nil, err
	}

	list, err := foods.Get(req.Context(), fm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, list, nil
}

func (api *API) epGetUserFood(req *http.Request) (int, any, error) {
	foods, err := api.userFoods(req)
	if err != nil {
		return 0, nil, err
	}
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}

	food, err := foods.GetBy(req.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, food, nil
}

func (api *API) epCreateUserFood(req *http.Request) (int, any, error) {
	foods, err := api.userFoods(req)
	if err != nil {
		return 0, nil, err
	}
	var em service.FoodEditModel
	if err := decodeBody(req, &em); err != nil {
		return 0, nil, err
	}

	created, err := foods.Save(req.Context(), &em)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, created, nil
}

func (api *API) epUpdateUserFood(req *http.Request) (int, any, error) {
	foods, err := api.userFoods(req)
	if err != nil {
		return 0, nil, err
	}
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}
	var em service.FoodEditModel
	if err := decodeBody(req, &em); err != nil {
		return 0, nil, err
	}

	updated, err := foods.Update(req.Context(), id, &em)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, updated, nil
}

func (api *API) epDeleteUserFood(req *http.Request) (int, any, error) {
	foods, err := api.userFoods(req)
	if err != nil {
		return 0, nil, err
	}
	id, err := urlID(req, "id")
	if err != nil {
		return 0, nil, err
	}

	deleted, err := foods.Delete(req.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, deleted, nil
}

func (api *API) epListFoods(req *http.Request) (int, any, error) {
	fm, err := filterModel(req)
	if err != nil {
		return 0, nil, err
	}

	list, err := api.foods.GetAll(req.Context(), fm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, list, nil
}

func (api *API) epListPublicFoods(req *http.Request) (int, any, error) {
	fm, err := filterModel(req)
	if err != nil {
		return 0, nil, err
	}

	list, err := api.foods.GetPublic(req.Context(), fm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, list, nil
}

func (api *API) epListDeliciousFoods(req *http.Request) (int, any, error) {
	fm, err := filterModel(req)
	if err != nil {
		return 0, nil, err
	}

	list, err := api.foods.GetDelicious(req.Context(), fm)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, list, nil
}

func (api *API) epMarkDelicious(req *http.Request) (int, any, error) {
	var em service.DeliciousEditModel
	if err := decodeBody(req, &em); err != nil {
		return 0, nil, err
	}

	marked, err := api.foods.MarkDelicious(req.Context(), em)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, marked, nil
}
