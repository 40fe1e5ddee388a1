// Package haldex implements the frame interception engine that sits between
// a vehicle's drivetrain CAN bus and a haldex all-wheel-drive coupling unit.
//
// The Interceptor relays every frame between the two buses and rewrites a
// small set of motor and brake frames so that the coupling unit locks
// according to an operator selected Mode instead of its factory behaviour:
//   - Stock passes everything through;
//   - Forward suppresses pedal information so the unit stays open;
//   - FiftyFifty requests full lock whenever the pedal exceeds a threshold;
//   - Custom interpolates a lock target from a per-speed lockpoint curve.
//
// The mode and the curve are programmed over a small master protocol on the
// vehicle bus (identifiers 0x7FB..0x7FF). Master implements the client side
// of that protocol.
package haldex
