package services

import (
	"errors"

	"pageturner/internal/apperror"
	"pageturner/internal/models"
	"pageturner/internal/repositories"
)

func requireUser(actor *models.User) error {
	if actor == nil {
		return apperror.Authentication("Not authorized, no token")
	}
	return nil
}

func requireAdmin(actor *models.User) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return apperror.AccessDenied("Not authorized as an admin")
	}
	return nil
}

// notFound turns a repository miss into a NotFoundError and leaves other errors alone.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperror.NotFoundf(format, args...)
	}
	return err
}
