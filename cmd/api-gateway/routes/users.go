package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apitypes "github.com/lgulliver/openapi-gateway/cmd/api-gateway/types"
	"github.com/lgulliver/openapi-gateway/internal/catalog"
	"github.com/lgulliver/openapi-gateway/internal/users"
	"github.com/lgulliver/openapi-gateway/pkg/types"
)

var userTags = []string{"users"}

// UserRoutes sets up the sample user API on its version groups
func UserRoutes(v1, v2 *catalog.Group, userService UserServiceInterface) {
	v1.GET("/users", types.OperationDescriptor{
		OperationID: "listUsersV1",
		Summary:     "List users",
		Tags:        userTags,
		Responses: []types.ResponseDescriptor{
			{Status: http.StatusOK, Body: []apitypes.UserV1{}},
		},
	}, handleListUsersV1(userService))

	v2.GET("/users", types.OperationDescriptor{
		OperationID: "listUsers",
		Summary:     "List users",
		Description: "Returns a page of users ordered by username.",
		Tags:        userTags,
		Parameters: []types.ParameterDescriptor{
			{Name: "page", In: "query", Type: "integer", Description: "Page number, starting at 1"},
			{Name: "per_page", In: "query", Type: "integer", Description: "Page size, at most 100"},
		},
		Responses: []types.ResponseDescriptor{
			{Status: http.StatusOK, Body: apitypes.UserListV2{}},
		},
	}, handleListUsersV2(userService))

	v2.POST("/users", types.OperationDescriptor{
		OperationID: "createUser",
		Summary:     "Create a user",
		Tags:        userTags,
		RequestBody: types.CreateUserRequest{},
		Responses: []types.ResponseDescriptor{
			{Status: http.StatusCreated, Body: apitypes.UserV2{}},
			{Status: http.StatusBadRequest, Body: apitypes.ErrorResponse{}},
			{Status: http.StatusConflict, Body: apitypes.ErrorResponse{}},
		},
	}, handleCreateUser(userService))

	v2.GET("/users/:id", types.OperationDescriptor{
		OperationID: "getUser",
		Summary:     "Get a user",
		Tags:        userTags,
		Parameters: []types.ParameterDescriptor{
			{Name: "id", In: "path", Type: "string", Required: true, Description: "User ID"},
		},
		Responses: []types.ResponseDescriptor{
			{Status: http.StatusOK, Body: apitypes.UserV2{}},
			{Status: http.StatusNotFound, Body: apitypes.ErrorResponse{}},
		},
	}, handleGetUser(userService))
}

func handleListUsersV1(userService UserServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, _, err := userService.List(c.Request.Context(), 1, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "failed to list users", Details: err.Error()})
			return
		}

		out := make([]apitypes.UserV1, 0, len(list))
		for i := range list {
			out = append(out, apitypes.NewUserV1(&list[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleListUsersV2(userService UserServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

		list, pagination, err := userService.List(c.Request.Context(), page, perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "failed to list users", Details: err.Error()})
			return
		}

		out := apitypes.UserListV2{Data: make([]apitypes.UserV2, 0, len(list)), Pagination: *pagination}
		for i := range list {
			out.Data = append(out.Data, apitypes.NewUserV2(&list[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleCreateUser(userService UserServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request", Details: err.Error(), Code: "INVALID_REQUEST"})
			return
		}

		user, err := userService.Create(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, users.ErrUserExists) {
				c.JSON(http.StatusConflict, apitypes.ErrorResponse{Error: "user already exists", Code: "USER_EXISTS"})
				return
			}
			c.JSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "failed to create user", Details: err.Error()})
			return
		}

		c.JSON(http.StatusCreated, apitypes.NewUserV2(user))
	}
}

func handleGetUser(userService UserServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "user not found", Code: "USER_NOT_FOUND"})
			return
		}

		user, err := userService.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "user not found", Code: "USER_NOT_FOUND"})
				return
			}
			c.JSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "failed to get user", Details: err.Error()})
			return
		}

		c.JSON(http.StatusOK, apitypes.NewUserV2(user))
	}
}
