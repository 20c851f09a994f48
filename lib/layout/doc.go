// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout implements the index algebra shared by every array in
// a view set: element orders that flatten coordinate vectors into
// linear indexes, and linear-fractional expressions that project a
// coordinate of one array into the index space of another.
//
// An Expr maps one source coordinate x to q = (A*x+B)/(C*x+D). The
// projection only holds when the division is exact; a nonzero remainder
// means the source element has no counterpart in the destination. A
// Mapping compiles one Expr per destination coordinate together with
// both arrays' shapes and orders, and answers the question "which
// destination element does source element n land on".
//
// Everything in this package is pure and allocation-light. Mapping
// carries scratch coordinate vectors and is therefore not safe for
// concurrent use; build one per goroutine.
package layout
