package service

import "errors"

// The service layer translates repository outcomes into a fixed error
// taxonomy.  Higher layers (HTTP handlers, the payment consumer) only
// ever see these values, never raw driver errors.
var (
    // ErrInvalidQuantity rejects reserve requests with a non-positive
    // quantity before any state is touched.
    ErrInvalidQuantity = errors.New("quantity must be positive")

    // ErrInvalidArgument rejects requests missing a required identifier.
    ErrInvalidArgument = errors.New("missing required identifier")

    // ErrSoldOut signals insufficient capacity.  It is an expected,
    // recoverable negative result, not a fault.
    ErrSoldOut = errors.New("sold out")

    // ErrReservationNotFound signals an unknown reservation ID.
    ErrReservationNotFound = errors.New("reservation not found")

    // ErrReservationExpired signals that the targeted holds have already
    // expired.  Recoverable by reserving again.
    ErrReservationExpired = errors.New("reservation expired")

    // ErrConflict signals a transition attempted on holds that are not in
    // RESERVED state for a reason other than expiry, e.g. a double
    // confirm.  It indicates a bug upstream and is logged loudly.
    ErrConflict = errors.New("reservation state conflict")

    // ErrStoreUnavailable signals that the durable store could not be
    // reached even after bounded retries.
    ErrStoreUnavailable = errors.New("store unavailable")
)
