package githubapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-github/v68/github"

	"minerva/internal/ports"
)

func ghError(status int, message string) error {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  message,
	}
}

func TestMapErrTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: ghError(http.StatusNotFound, "Not Found"), want: ports.ErrNotFound},
		{name: "conflict", err: ghError(http.StatusConflict, "is at ... but expected ..."), want: ports.ErrStaleRevision},
		{name: "ref exists", err: ghError(http.StatusUnprocessableEntity, "Reference already exists"), want: ports.ErrAlreadyExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapErr() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMapErrPassesThroughUnknown(t *testing.T) {
	validation := ghError(http.StatusUnprocessableEntity, "Validation Failed")
	if got := mapErr(validation); errors.Is(got, ports.ErrAlreadyExists) {
		t.Fatalf("mapErr() folded a generic 422 into ErrAlreadyExists")
	}

	plain := fmt.Errorf("dial tcp: connection refused")
	if got := mapErr(plain); got != plain {
		t.Fatalf("mapErr() = %v, want the original error", got)
	}

	if got := mapErr(nil); got != nil {
		t.Fatalf("mapErr(nil) = %v, want nil", got)
	}
}
