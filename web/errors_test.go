package web

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/socialdistance/socialdistance/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Field: "title", Reason: "too long"}, http.StatusBadRequest},
		{fmt.Errorf("read post: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrAlreadyAccepted, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: bad token", domain.ErrUnauthorized), http.StatusUnauthorized},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
