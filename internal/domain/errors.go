package domain

import "errors"

// ErrUnknownTimeline is returned by the session registry (C1) when neither
// the night-session table nor the per-exchange day table covers a tick's
// product code / exchange combination.
var ErrUnknownTimeline = errors.New("domain: unknown trading session timeline")

// ErrCFFEXAmbiguous is returned for CFFEX ticks when no classifier has
// been registered to disambiguate index futures from treasury bonds (spec
// §9 open question — the source raises NotImplementedError here).
var ErrCFFEXAmbiguous = errors.New("domain: CFFEX product class is ambiguous, register a classifier")

// ErrHydrationMiss marks a non-fatal condition where the store returned
// fewer bars than requested during cache hydration (spec §7). Callers
// should log and continue with what was returned; this is exported so
// tests can assert on it, not so production code treats it as fatal.
var ErrHydrationMiss = errors.New("domain: store returned fewer bars than requested")
