package observability

const (
	MCheckoutRequests        MetricKey = "checkout_requests_total"
	MCheckoutDuration        MetricKey = "checkout_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MPaymentRequests         MetricKey = "payment_requests_total"
	MPaymentRequestDuration  MetricKey = "payment_request_duration_seconds"
	MReservationFailures     MetricKey = "inventory_reservation_failed_total"
	MReservationsExpired     MetricKey = "inventory_reservation_expired_total"
	MSettlementReconOrphans  MetricKey = "settlement_reconciliation_total"
	MNotificationsPublished  MetricKey = "notification_published_total"
	MNotificationsDropped    MetricKey = "notification_dropped_total"
	MOrderStatusTransitions  MetricKey = "order_status_transitions_total"
)
