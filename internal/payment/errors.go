package payment

import (
	"errors"
	"fmt"
)

var (
	ErrUnregisteredGateway = errors.New("unregistered payment gateway")
	ErrNotInitialized      = errors.New("payment gateway not initialized")
	ErrContainerNotFound   = errors.New("container element not found")
	ErrVendorLoad          = errors.New("vendor sdk failed to load")
)

// UnregisteredGatewayError is returned by Registry.Create for an unknown tag.
type UnregisteredGatewayError struct {
	Type string
}

func (e *UnregisteredGatewayError) Error() string {
	return fmt.Sprintf("unregistered payment gateway type: %s", e.Type)
}

func (e *UnregisteredGatewayError) Is(target error) bool {
	return target == ErrUnregisteredGateway
}

// NotInitializedError is returned when a lifecycle call precedes Initialize.
type NotInitializedError struct {
	Gateway string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("%s gateway is not initialized", e.Gateway)
}

func (e *NotInitializedError) Is(target error) bool {
	return target == ErrNotInitialized
}

// ContainerNotFoundError is returned when the configured container id does not
// exist in the checkout document.
type ContainerNotFoundError struct {
	ContainerID string
}

func (e *ContainerNotFoundError) Error() string {
	return fmt.Sprintf("container element not found: %s", e.ContainerID)
}

func (e *ContainerNotFoundError) Is(target error) bool {
	return target == ErrContainerNotFound
}

// VendorLoadError is returned when a vendor script cannot be fetched.
type VendorLoadError struct {
	Src string
	Err error
}

func (e *VendorLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to load vendor sdk %s", e.Src)
	}
	return fmt.Sprintf("failed to load vendor sdk %s: %v", e.Src, e.Err)
}

func (e *VendorLoadError) Unwrap() error {
	return e.Err
}

func (e *VendorLoadError) Is(target error) bool {
	return target == ErrVendorLoad
}
