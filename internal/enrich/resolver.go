package enrich

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plattops/xviol/internal/platform"
)

const na = "NA"

const (
	// manageSuffix marks the permission group that administers a repository.
	manageSuffix = "-manage"
	// cacheSuffix is appended to remote repository names by Artifactory.
	// Permission targets are keyed by the uncached name.
	cacheSuffix = "-cache"
)

// PlatformAPI is the slice of the platform client the resolver depends on.
type PlatformAPI interface {
	RepoPermissions(ctx context.Context, repo string) (*platform.PermissionsInfo, error)
	GroupMembers(ctx context.Context, group string) ([]string, error)
}

// Resolver maps repository names to the users responsible for them by
// walking the repository's permission groups and then the membership of
// its manage group.
type Resolver struct {
	client  PlatformAPI
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewResolver builds a Resolver that paces its platform calls at the given
// rate. A burst of 1 keeps the lookups strictly sequential.
func NewResolver(client PlatformAPI, limit rate.Limit, logger *zap.Logger) *Resolver {
	return &Resolver{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("enrich"),
	}
}

// ResolveUsers resolves each repository to a "|"-joined list of responsible
// users, keyed by the repository name exactly as given. Every repository it
// reaches gets an entry; a lookup that fails for any reason resolves to "NA"
// so one broken repository never poisons the rest. The walk stops early only
// when ctx is done, returning the partial map alongside the context error.
func (r *Resolver) ResolveUsers(ctx context.Context, repos []string) (map[string]string, error) {
	out := make(map[string]string, len(repos))
	for _, repo := range repos {
		if _, done := out[repo]; done {
			continue
		}
		trimmed := strings.Trim(strings.TrimSpace(repo), `"`)
		if trimmed == "" || trimmed == na {
			out[repo] = na
			continue
		}
		users, err := r.resolveOne(ctx, lookupName(trimmed))
		if err != nil {
			return out, err
		}
		out[repo] = users
	}
	return out, nil
}

// resolveOne walks the two-hop chain for a single repository. The returned
// error is non-nil only when ctx is done; every other failure degrades to
// "NA" after a warning.
func (r *Resolver) resolveOne(ctx context.Context, repo string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Warn("Context cancelled while waiting for rate limiter", zap.String("repo", repo))
		return "", err
	}
	perms, err := r.client.RepoPermissions(ctx, repo)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("Repository permission lookup failed", zap.String("repo", repo), zap.Error(err))
		return na, nil
	}

	group := manageGroup(perms.Principals.Groups)
	if group == "" {
		r.logger.Debug("No manage group holds the repository", zap.String("repo", repo))
		return na, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Warn("Context cancelled while waiting for rate limiter", zap.String("group", group))
		return "", err
	}
	members, err := r.client.GroupMembers(ctx, group)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("Group membership lookup failed",
			zap.String("repo", repo),
			zap.String("group", group),
			zap.Error(err))
		return na, nil
	}
	if len(members) == 0 {
		return na, nil
	}

	r.logger.Debug("Resolved repository owners",
		zap.String("repo", repo),
		zap.String("group", group),
		zap.Int("members", len(members)))
	return strings.Join(members, "|"), nil
}

// lookupName strips a single trailing "-cache" so that a remote repository's
// cache name hits the permission target of the repository it mirrors.
func lookupName(repo string) string {
	if len(repo) > len(cacheSuffix) && strings.EqualFold(repo[len(repo)-len(cacheSuffix):], cacheSuffix) {
		return repo[:len(repo)-len(cacheSuffix)]
	}
	return repo
}

// manageGroup picks the group that administers the repository. When several
// groups match, the lexicographically first wins so reruns stay
// deterministic.
func manageGroup(groups map[string][]string) string {
	var matches []string
	for name := range groups {
		if strings.HasSuffix(strings.ToLower(name), manageSuffix) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}
