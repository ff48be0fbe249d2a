package update

import (
	"testing"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/loykin/sentryd/internal/config"
)

func TestAuthFromPrecedenceAndAnonymous(t *testing.T) {
	if auth, err := AuthFrom(config.AppGitConfig{}); err != nil || auth != nil {
		t.Fatalf("expected anonymous auth for empty config, got %v, %v", auth, err)
	}

	auth, err := AuthFrom(config.AppGitConfig{Token: "tok"})
	if err != nil {
		t.Fatalf("token auth: %v", err)
	}
	basic, ok := auth.(*githttp.BasicAuth)
	if !ok {
		t.Fatalf("expected *githttp.BasicAuth, got %T", auth)
	}
	if basic.Password != "tok" || basic.Username != "sentryd" {
		t.Fatalf("unexpected basic auth: %+v", basic)
	}

	auth, err = AuthFrom(config.AppGitConfig{Token: "tok", Username: "deploy"})
	if err != nil {
		t.Fatalf("token auth with username: %v", err)
	}
	basic = auth.(*githttp.BasicAuth)
	if basic.Username != "deploy" {
		t.Fatalf("expected configured username to win, got %q", basic.Username)
	}
}
