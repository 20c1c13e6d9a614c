/*
Package network carves a parent CIDR block into the segmented address plan
every other resource places itself into.

Each deployment gets one /24 segment per visibility class per availability
zone, carved in class-major, zone-minor order:

	10.0.0.0/16, 3 zones:

	  public   a 10.0.0.0/24   b 10.0.1.0/24   c 10.0.2.0/24
	  private  a 10.0.3.0/24   b 10.0.4.0/24   c 10.0.5.0/24
	  data     a 10.0.6.0/24   b 10.0.7.0/24   c 10.0.8.0/24

The carve is deterministic, so a topology can always be regenerated from its
config. Blocks that cannot hold the full class/zone grid fail with
AddressSpaceExhausted before anything downstream sees a partial plan.

Egress for private segments is either one shared path in zone a or one path
per zone, selected explicitly in Config rather than defaulted.
*/
package network
