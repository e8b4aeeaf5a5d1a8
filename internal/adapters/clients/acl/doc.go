// Package acl is the anti-corruption layer between the REST client and the
// application. Downstream DTOs and status codes stop here; callers above it
// only ever see domain types and domain errors.
//
// [DownstreamAdapter] implements ports.DownstreamClient and
// ports.HealthChecker on top of [BaseAdapter]. [MapClientError] does the
// error translation:
//
//	404                       domain.ErrNotFound
//	401                       domain.ErrAuthentication
//	409                       domain.ErrConflict
//	400, 422                  domain.ErrValidation
//	429                       domain.ErrRateLimit
//	5xx, transport failures   domain.ErrUnavailable
//
// Anything else, undecodable bodies included, is returned untranslated and
// reported by the problem details middleware as an internal error.
package acl
