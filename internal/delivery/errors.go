package delivery

import (
	"net/http"

	"adlens/internal/domain"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindInvalidCredentials:      http.StatusBadGateway,
	domain.KindActorNotFound:           http.StatusBadGateway,
	domain.KindRunFailed:               http.StatusBadGateway,
	domain.KindTimeout:                 http.StatusGatewayTimeout,
	domain.KindRateLimited:             http.StatusTooManyRequests,
	domain.KindUsageQuotaExceeded:      http.StatusServiceUnavailable,
	domain.KindNoResults:               http.StatusNotFound,
	domain.KindNetworkError:            http.StatusServiceUnavailable,
	domain.KindInvalidUpstreamResponse: http.StatusBadGateway,
	domain.KindUnknown:                 http.StatusInternalServerError,
}

var kindMessage = map[domain.ErrorKind]string{
	domain.KindInvalidCredentials:      "The ad data provider rejected our credentials",
	domain.KindActorNotFound:           "The ad data source is not available",
	domain.KindRunFailed:               "The ad data provider could not complete the search",
	domain.KindTimeout:                 "The search took too long, try again with fewer ads",
	domain.KindRateLimited:             "Too many searches right now, try again shortly",
	domain.KindUsageQuotaExceeded:      "The ad data provider quota is exhausted",
	domain.KindNoResults:               "No ads were found",
	domain.KindNetworkError:            "The ad data provider is unreachable",
	domain.KindInvalidUpstreamResponse: "The ad data provider returned an unexpected response",
	domain.KindUnknown:                 "Unexpected error while fetching ads",
}

func statusForKind(kind domain.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func safeMessage(kind domain.ErrorKind) string {
	if msg, ok := kindMessage[kind]; ok {
		return msg
	}
	return kindMessage[domain.KindUnknown]
}
