// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package codec

import (
	"fmt"

	"github.com/tomtom215/vaultkeep/internal/engineerr"
)

// errCorruptPadding and errCorruptHeader both surface as
// engineerr.ErrCorruptObject to callers; a decrypt attempt with the wrong
// key is indistinguishable from genuine corruption and must fail the same
// way (spec §4.1 failure modes).
var (
	errCorruptPadding = fmt.Errorf("%w: padding", engineerr.ErrCorruptObject)
	errCorruptHeader  = fmt.Errorf("%w: header", engineerr.ErrCorruptObject)
)
