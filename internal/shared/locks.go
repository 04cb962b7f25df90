package shared

import "fmt"

// OrderLockKey builds redis keys serialising state changes of one purchase order.
func OrderLockKey(orderID int64) string {
	return fmt.Sprintf("procurement:order:%d:lock", orderID)
}
