// Package tap runs chained verb calls as a TAP test suite.
//
// A Test calls one api/verb, then checks the reply status and the reply
// arguments against JSON expectations. A Group is an ordered list of tests.
// A Suite holds the groups, registers one verb per group and per test on
// its hosting API, and can run its autostart group as soon as the API is
// ready.
//
//	suite, _ := tap.NewSuite(api, "demo-suite")
//	suite.SetOutput(tap.OutputTAP).SetAutoexit(false)
//
//	suite.AddTest(tap.NewTest("ping", "demo", "ping").
//	    AddExpect("pong").
//	    SetOnSuccess("more"))
//
//	more := tap.NewGroup("more").SetTimeout(time.Second)
//	more.AddTest(tap.NewTest("timeout", "demo", "never").
//	    SetTimeout(10 * time.Millisecond).
//	    SetStatus(errors.StatusWatchdog))
//	suite.AddGroup(more)
//
//	suite.Finalize()
//
// # Sequencing
//
// Tests of a group run one at a time. After a test completes, the next test
// is the first test of the group named by its on-success or on-error label,
// depending on the outcome, or the following test of its own group when the
// label is unset. A label naming no group ends the sequence. A test reached
// twice in the same launch also ends it.
//
// # Timeouts
//
// Each run is bounded by a watchdog using the first non-zero timeout among
// the test, its group and the suite. When the watchdog fires first, the test
// completes with status StatusWatchdog and no reply data; the late reply is
// logged and dropped.
//
// # Report
//
// The report is a JSON object keyed by group label, autostart first, each
// value an array holding the plan line followed by one line per test in
// declaration order:
//
//	{"autostart":["1..2 # autostart","ok 1 - ping","not ok 2 - check # status=-4 info=Verb not found"]}
package tap
