package linkcheck

// LinkResult はHTTPステータスコードに基づくリンク確認結果の分類。
type LinkResult int

const (
	// LinkResultHealthy はリンク先が正常に応答した（2xx/3xx）。
	LinkResultHealthy LinkResult = iota
	// LinkResultBroken はリンク先が存在しない（404/410）。
	LinkResultBroken
	// LinkResultRestricted はリンク先が認証を要求した（401/403）。
	LinkResultRestricted
	// LinkResultUnavailable はリンク先が一時的に応答できない（429/5xx）。
	LinkResultUnavailable
	// LinkResultUnknown は未知のステータスコード。
	LinkResultUnknown
)

// String はログ・表示用の名前を返す。
func (r LinkResult) String() string {
	switch r {
	case LinkResultHealthy:
		return "healthy"
	case LinkResultBroken:
		return "broken"
	case LinkResultRestricted:
		return "restricted"
	case LinkResultUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ClassifyHTTPStatus はHTTPステータスコードをリンク確認結果に分類する。
func ClassifyHTTPStatus(statusCode int) LinkResult {
	switch {
	case statusCode >= 200 && statusCode < 400:
		return LinkResultHealthy
	case statusCode == 404 || statusCode == 410:
		return LinkResultBroken
	case statusCode == 401 || statusCode == 403:
		return LinkResultRestricted
	case statusCode == 429:
		return LinkResultUnavailable
	case statusCode >= 500:
		return LinkResultUnavailable
	default:
		return LinkResultUnknown
	}
}
