// Package nandprog reads and writes SPI NAND/NOR flash chips through a
// USB-to-SPI bridge adapter.
//
// A Session owns one adapter and one chip. ReadRange and WriteRange walk a
// page range, switching the chip into 4-byte address mode when the
// configured capacity exceeds 16 MiB, and polling the busy flag after each
// page program. Operations on a Session are serialized internally, so only
// one transfer is in flight at a time.
//
// # References:
//
// Adapters
//   - [CH341DS2]: CH341 USB to SPI/I2C/parallel bridge, programming manual (CH341DLL StreamSPI4, Set_D5_D0, SetStream)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//
// SPI Flash
//   - [W25N01GV]: Winbond W25N01GV 1G-bit Serial SLC NAND Flash Memory
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//   - [MX25L256]: Macronix MX25L25645G 3V 256Mb Serial NOR Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet
package nandprog
